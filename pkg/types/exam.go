// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QuestionType classifies a canonical question.
type QuestionType string

const (
	QuestionMCQ     QuestionType = "MCQ"
	QuestionMSQ     QuestionType = "MSQ"
	QuestionBoolean QuestionType = "Boolean"
	QuestionNAT     QuestionType = "NAT"
	QuestionSA      QuestionType = "SA"
)

// CorrectIndex holds the correctIndex answer field. It marshals as a single
// integer for MCQ and Boolean questions and as an integer array for MSQ.
type CorrectIndex struct {
	// Multi selects the array form.
	Multi bool

	// Indices holds the zero-based correct option positions. In the scalar
	// form only Indices[0] is meaningful.
	Indices []int
}

// SingleIndex returns a scalar correctIndex.
func SingleIndex(i int) *CorrectIndex {
	return &CorrectIndex{Indices: []int{i}}
}

// MultiIndex returns an array correctIndex. A nil slice marshals as [].
func MultiIndex(indices []int) *CorrectIndex {
	if indices == nil {
		indices = []int{}
	}
	return &CorrectIndex{Multi: true, Indices: indices}
}

// MarshalJSON implements json.Marshaler.
func (c CorrectIndex) MarshalJSON() ([]byte, error) {
	if c.Multi {
		if c.Indices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Indices)
	}
	if len(c.Indices) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(c.Indices[0])
}

// UnmarshalJSON implements json.Unmarshaler and accepts both shapes.
func (c *CorrectIndex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var indices []int
		if err := json.Unmarshal(data, &indices); err != nil {
			return fmt.Errorf("decoding correctIndex array: %w", err)
		}
		*c = *MultiIndex(indices)
		return nil
	}
	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("decoding correctIndex: %w", err)
	}
	*c = *SingleIndex(i)
	return nil
}

// Question is one normalized question. Exactly one of CorrectIndex and
// CorrectValue is set, depending on Type; other types carry neither.
type Question struct {
	// ID is "{examId}-q{n}" with a 1-based n.
	ID string `json:"id" yaml:"id"`

	Type  QuestionType `json:"type" yaml:"type"`
	Marks float64      `json:"marks" yaml:"marks"`

	// Text is the assembled question text with images embedded as
	// markdown references.
	Text string `json:"text" yaml:"text"`

	// Options are display strings; option images are embedded as markdown.
	Options []string `json:"options" yaml:"options"`

	CorrectIndex *CorrectIndex `json:"correctIndex,omitempty" yaml:"correct_index,omitempty"`
	CorrectValue *string       `json:"correctValue,omitempty" yaml:"correct_value,omitempty"`
}

// Exam is one normalized exam paper.
type Exam struct {
	// ID identifies the exam inside a subject library and drives upserts.
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title" yaml:"title"`
	Subject   string     `json:"subject" yaml:"subject"`
	Year      string     `json:"year" yaml:"year"`
	Duration  float64    `json:"duration" yaml:"duration"`
	Marks     float64    `json:"marks" yaml:"marks"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// SubjectMeta describes a subject library document.
type SubjectMeta struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Code  string `json:"code" yaml:"code"`
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// SubjectLibrary is the persisted per-subject document. Exams are unique by ID.
type SubjectLibrary struct {
	Meta  SubjectMeta `json:"meta" yaml:"meta"`
	Exams []Exam      `json:"exams" yaml:"exams"`
}

// FindExam returns the position of the exam with the given id, or -1.
func (l *SubjectLibrary) FindExam(id string) int {
	for i := range l.Exams {
		if l.Exams[i].ID == id {
			return i
		}
	}
	return -1
}
