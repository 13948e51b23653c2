// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pyq-harvester/internal/assets"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

const samplePaperJSON = `{
  "metadata": {
    "question_paper_name": "Quiz 1 - Jan 2024",
    "total_score": 50,
    "duration": 90,
    "year": 2024,
    "exam": {"exam_name": "Qualifier"}
  },
  "questions": [
    {
      "id": 101,
      "question_type": "MCQ",
      "total_mark": 2,
      "course": {"course_name": "Computational Thinking"},
      "question_text_1": "Pick the odd one.",
      "question_image_1": "q101.png",
      "options": [
        {"option_text": "one", "is_correct": 0},
        {"option_text": "two", "is_correct": 0},
        {"option_text": "three", "is_correct": 1},
        {"option_text": "four", "option_image": "o4.png", "is_correct": 0}
      ]
    },
    {
      "id": 102,
      "question_type": "MSQ",
      "total_mark": 3,
      "question_text_1": "Select primes.",
      "options": [
        {"option_text": "1"},
        {"option_text": "2", "is_correct": true},
        {"option_text": "4"},
        {"option_text": "3", "is_correct": 1}
      ]
    },
    {
      "id": 103,
      "question_type": "NAT",
      "total_mark": 4,
      "question_text_1": "How many piles?",
      "question_image_url": ["https://cdn.example.com/question_images/list.png"],
      "value_start": 5,
      "value_end": 10
    },
    {
      "id": 104,
      "question_type": "Boolean",
      "question_text_2": "The sky is blue.",
      "options": [{"option_text": "True", "is_correct": true}, {"option_text": "False"}]
    },
    {
      "id": 105,
      "question_type": "COMPREHENSION",
      "question_text_1": "Read the passage."
    }
  ]
}`

func decodeTree(t *testing.T, s string) map[string]any {
	t.Helper()
	var tree map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &tree))
	return tree
}

func fixedNormalizer(cfg types.NormalizeConfig) *Normalizer {
	n := New(cfg)
	n.Now = func() time.Time { return time.Unix(1700000000, 0) }
	return n
}

func TestBuild_ExamFields(t *testing.T) {
	n := fixedNormalizer(types.NormalizeConfig{})
	exam, err := n.Build(decodeTree(t, samplePaperJSON), nil, "")
	require.NoError(t, err)

	assert.Equal(t, "exam-1700000000", exam.ID)
	assert.Equal(t, "Quiz 1 - Jan 2024", exam.Title)
	assert.Equal(t, "Computational Thinking", exam.Subject)
	assert.Equal(t, "2024", exam.Year)
	assert.Equal(t, 90.0, exam.Duration)
	assert.Equal(t, 50.0, exam.Marks)
	require.Len(t, exam.Questions, 5)

	for i, q := range exam.Questions {
		assert.Equal(t, "exam-1700000000-q"+string(rune('1'+i)), q.ID)
	}
}

func TestBuild_Defaults(t *testing.T) {
	n := fixedNormalizer(types.NormalizeConfig{})
	exam, err := n.Build(decodeTree(t, `{"questions":[{"question_text_1":"Q"}]}`), nil, "exam-fixed")
	require.NoError(t, err)

	assert.Equal(t, "exam-fixed", exam.ID)
	assert.Equal(t, defaultTitle, exam.Title)
	assert.Equal(t, defaultSubject, exam.Subject)
	assert.Equal(t, defaultYear, exam.Year)
	assert.Zero(t, exam.Duration)
	assert.Zero(t, exam.Marks)
	assert.Equal(t, "exam-fixed-q1", exam.Questions[0].ID)
	assert.Empty(t, exam.Questions[0].Options)
	assert.Nil(t, exam.Questions[0].CorrectIndex)
	assert.Nil(t, exam.Questions[0].CorrectValue)
}

func TestBuild_NoQuestions(t *testing.T) {
	n := New(types.NormalizeConfig{})
	for _, doc := range []string{
		`{}`,
		`{"metadata":{"question_paper_name":"Empty"},"questions":[]}`,
		`{"props":{"question_paper":{"questions":[]}}}`,
		`{"questions":"not a list"}`,
	} {
		_, err := n.Build(decodeTree(t, doc), nil, "")
		assert.True(t, errors.Is(err, ErrNoQuestions), "doc %s", doc)
	}
}

func TestBuild_QuestionListPriority(t *testing.T) {
	n := New(types.NormalizeConfig{})
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"props question_paper", `{"props":{"question_paper":{"questions":[{"question_text_1":"P"}]},"questions":[{"question_text_1":"X"}]}}`, "P"},
		{"question_paper", `{"question_paper":{"questions":[{"question_text_1":"QP"}]},"questions":[{"question_text_1":"X"}]}`, "QP"},
		{"bare", `{"questions":[{"question_text_1":"B"}]}`, "B"},
		{"props bare", `{"props":{"questions":[{"question_text_1":"PB"}]}}`, "PB"},
		{"empty first path falls through", `{"question_paper":{"questions":[]},"questions":[{"question_text_1":"B2"}]}`, "B2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam, err := n.Build(decodeTree(t, tt.doc), nil, "e")
			require.NoError(t, err)
			assert.Equal(t, tt.want, exam.Questions[0].Text)
		})
	}
}

func TestAssembleText(t *testing.T) {
	tests := []struct {
		name string
		q    string
		want string
	}{
		{"fields and extra texts", `{"question_text_1":"A","question_text_3":"C","question_texts":["A","D"]}`, "A C D"},
		{"numeric order", `{"question_text_5":"E","question_text_2":"B"}`, "B E"},
		{"texts only", `{"question_texts":["X","Y","X"]}`, "X Y"},
		{"substring skipped", `{"question_text_1":"What is 2+2?","question_texts":["2+2","four"]}`, "What is 2+2? four"},
		{"blank ignored", `{"question_text_1":"  ","question_text_2":"Z","question_texts":[null,""]}`, "Z"},
		{"none", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssembleText(Record(decodeTree(t, tt.q))))
		})
	}
}

func TestCorrectValue(t *testing.T) {
	tests := []struct {
		name string
		q    string
		want *string
	}{
		{"equal", `{"value_start":5,"value_end":5}`, strPtr("5")},
		{"range", `{"value_start":5,"value_end":10}`, strPtr("5 - 10")},
		{"start only", `{"value_start":"3.14"}`, strPtr("3.14")},
		{"zero start", `{"value_start":0}`, strPtr("0")},
		{"decimal", `{"value_start":2.5,"value_end":"2.5"}`, strPtr("2.5")},
		{"absent", `{"value_end":10}`, nil},
		{"null", `{"value_start":null}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CorrectValue(Record(decodeTree(t, tt.q))))
		})
	}
}

func TestBuild_AnswerShapes(t *testing.T) {
	n := fixedNormalizer(types.NormalizeConfig{})
	exam, err := n.Build(decodeTree(t, samplePaperJSON), nil, "")
	require.NoError(t, err)

	mcq := exam.Questions[0]
	require.NotNil(t, mcq.CorrectIndex)
	assert.False(t, mcq.CorrectIndex.Multi)
	assert.Equal(t, []int{2}, mcq.CorrectIndex.Indices)
	assert.Nil(t, mcq.CorrectValue)

	msq := exam.Questions[1]
	require.NotNil(t, msq.CorrectIndex)
	assert.True(t, msq.CorrectIndex.Multi)
	assert.Equal(t, []int{1, 3}, msq.CorrectIndex.Indices)

	nat := exam.Questions[2]
	assert.Nil(t, nat.CorrectIndex)
	require.NotNil(t, nat.CorrectValue)
	assert.Equal(t, "5 - 10", *nat.CorrectValue)

	boolean := exam.Questions[3]
	assert.Equal(t, types.QuestionBoolean, boolean.Type)
	assert.Equal(t, []int{0}, boolean.CorrectIndex.Indices)

	other := exam.Questions[4]
	assert.Equal(t, types.QuestionType("COMPREHENSION"), other.Type)
	assert.Nil(t, other.CorrectIndex)
	assert.Nil(t, other.CorrectValue)

	data, err := json.Marshal(exam.Questions[:2])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"correctIndex":2`)
	assert.Contains(t, string(data), `"correctIndex":[1,3]`)
}

func TestBuild_MCQWithoutCorrectOmitsIndex(t *testing.T) {
	n := New(types.NormalizeConfig{})
	exam, err := n.Build(decodeTree(t, `{"questions":[
		{"question_type":"MCQ","options":[{"option_text":"a"},{"option_text":"b"}]},
		{"question_type":"MSQ","options":[{"option_text":"a"}]}
	]}`), nil, "e")
	require.NoError(t, err)

	assert.Nil(t, exam.Questions[0].CorrectIndex)
	require.NotNil(t, exam.Questions[1].CorrectIndex)
	assert.Empty(t, exam.Questions[1].CorrectIndex.Indices)

	data, err := json.Marshal(exam.Questions)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "correctIndex"))
	assert.Contains(t, string(data), `"correctIndex":[]`)
}

func TestBuild_ImagesUseLocalPaths(t *testing.T) {
	n := fixedNormalizer(types.NormalizeConfig{CDNBase: "https://cdn.example.com"})
	resolved := assets.Resolved{
		"/question_images/q101.png":                        "q101.png",
		"https://cdn.example.com/question_images/list.png": "list.png",
	}
	exam, err := n.Build(decodeTree(t, samplePaperJSON), resolved, "")
	require.NoError(t, err)

	assert.Equal(t, "Pick the odd one.\n\n![Image](images/q101.png)", exam.Questions[0].Text)
	assert.Equal(t, "How many piles?\n\n![Image](images/list.png)", exam.Questions[2].Text)

	// o4.png was not downloaded: the option falls back to the CDN option bucket.
	assert.Equal(t, "four ![Image](https://cdn.example.com/option_images/o4.png)", exam.Questions[0].Options[3])
	assert.Equal(t, "one", exam.Questions[0].Options[0])
}

func TestBuild_ImageOrder(t *testing.T) {
	n := New(types.NormalizeConfig{})
	resolved := assets.Resolved{
		"/question_images/a.png": "a.png",
		"/question_images/b.png": "b.png",
		"/x/c.png":               "c.png",
	}
	exam, err := n.Build(decodeTree(t, `{"questions":[{
		"question_text_1":"T",
		"question_image_url":["/x/c.png"],
		"question_image_2":"b.png",
		"question_image_1":"a.png"
	}]}`), resolved, "e")
	require.NoError(t, err)
	assert.Equal(t, "T\n\n![Image](images/a.png)\n\n![Image](images/b.png)\n\n![Image](images/c.png)", exam.Questions[0].Text)
}

func TestBuild_UnresolvedWithoutCDNUsesSource(t *testing.T) {
	n := New(types.NormalizeConfig{SourceBase: "https://quizpractice.space"})
	exam, err := n.Build(decodeTree(t, `{"questions":[{"question_image_1":"q.png","options":[{"option_image":"o.png"}]}]}`), nil, "e")
	require.NoError(t, err)
	assert.Equal(t, "\n\n![Image](https://quizpractice.space/question_images/q.png)", exam.Questions[0].Text)
	assert.Equal(t, " ![Image](https://quizpractice.space/app/option_images/o.png)", exam.Questions[0].Options[0])
}

func TestBuild_TypeAliases(t *testing.T) {
	n := New(types.NormalizeConfig{})
	exam, err := n.Build(decodeTree(t, `{"questions":[
		{"question_type":"mcq","options":[{"is_correct":1}]},
		{"question_type":"SA","value_start":"yes"},
		{"question_type":"NUMERIC","value_start":7}
	]}`), nil, "e")
	require.NoError(t, err)
	assert.Equal(t, types.QuestionMCQ, exam.Questions[0].Type)
	assert.Equal(t, types.QuestionSA, exam.Questions[1].Type)
	assert.Equal(t, "yes", *exam.Questions[1].CorrectValue)
	assert.Equal(t, types.QuestionNAT, exam.Questions[2].Type)
	assert.Equal(t, "7", *exam.Questions[2].CorrectValue)
}

func TestNormalize_Document(t *testing.T) {
	doc := types.RawPaperDocument{
		Metadata:  map[string]any{"question_paper_name": "Doc", "subject": "Maths"},
		Questions: []map[string]any{{"question_text_1": "Q1"}, {"question_text_1": "Q2"}},
		URL:       "https://quizpractice.space/question-paper/practise/1/abc",
	}
	exam, err := fixedNormalizer(types.NormalizeConfig{}).Normalize(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "Doc", exam.Title)
	assert.Equal(t, "Maths", exam.Subject)
	assert.Len(t, exam.Questions, 2)
}

func TestGenerateID_Schemes(t *testing.T) {
	n := New(types.NormalizeConfig{IDScheme: types.IDUUID})
	a, b := n.generateID(), n.generateID()
	assert.True(t, strings.HasPrefix(a, "exam-"))
	assert.NotEqual(t, a, b)

	n.NewID = func() string { return "exam-custom" }
	assert.Equal(t, "exam-custom", n.generateID())
}

func TestGenerateID_TimestampNeverRepeats(t *testing.T) {
	n := fixedNormalizer(types.NormalizeConfig{})
	assert.Equal(t, "exam-1700000000", n.generateID())
	assert.Equal(t, "exam-1700000001", n.generateID())

	// A clock that catches up continues from the later second.
	n.Now = func() time.Time { return time.Unix(1700000005, 0) }
	assert.Equal(t, "exam-1700000005", n.generateID())
	n.Now = func() time.Time { return time.Unix(1700000003, 0) }
	assert.Equal(t, "exam-1700000006", n.generateID())
}

func strPtr(s string) *string { return &s }
