// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

// Field-name variants of the raw platform records, in lookup priority
// order. Supporting a new historical format means extending these tables.
var (
	// questionListPaths locate the question list, checked against the
	// page props and the saved document alike.
	questionListPaths = [][]string{
		{"props", "question_paper", "questions"},
		{"question_paper", "questions"},
		{"questions"},
		{"props", "questions"},
		{"metadata", "questions"},
	}

	// metadataPaths locate the paper-level metadata object.
	metadataPaths = [][]string{
		{"metadata"},
		{"props", "question_paper"},
		{"question_paper"},
	}

	examTitleKeys    = []string{"question_paper_name", "paper_name", "name", "title"}
	examSubjectKeys  = []string{"subject", "subject_name", "course_name"}
	examYearKeys     = []string{"year", "exam_year"}
	examDurationKeys = []string{"duration", "duration_minutes"}
	examMarksKeys    = []string{"total_score", "total_marks", "marks"}

	// courseSubjectPath is the course name on the metadata or a question,
	// used when the metadata names no subject.
	courseSubjectPath = []string{"course", "course_name"}

	questionTypeKeys  = []string{"question_type", "type"}
	questionMarkKeys  = []string{"total_mark", "marks", "mark"}
	questionTextsKey  = "question_texts"
	questionImagesKey = "question_image_url"
	optionsKey        = "options"

	valueStartKeys = []string{"value_start", "answer_start"}
	valueEndKeys   = []string{"value_end", "answer_end"}

	optionTextKeys     = []string{"option_text", "text"}
	optionImageURLKeys = []string{"option_image_url"}
	optionImageKeys    = []string{"option_image"}
	optionCorrectKeys  = []string{"is_correct", "correct"}
)

// Numbered field families.
const (
	questionTextField  = "question_text_%d"
	questionImageField = "question_image_%d"
	maxTextFields      = 5
	maxImageFields     = 10
)

// imageExts are the extensions a numbered question image field must carry
// to be downloaded.
var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

// Defaults for absent exam-level fields.
const (
	defaultTitle   = "Custom Exam"
	defaultSubject = "Unknown"
	defaultYear    = "2024"
)
