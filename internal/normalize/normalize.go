// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize converts raw paper documents, in any of the platform's
// historical shapes, into canonical exams.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/pyq-harvester/internal/assets"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

// ErrNoQuestions reports a document with no usable question list.
var ErrNoQuestions = errors.New("no questions found")

// localImagePrefix is the relative form of a downloaded image reference.
const localImagePrefix = assets.ImagesDir + "/"

// typeAliases maps upper-cased raw question types to canonical ones.
var typeAliases = map[string]types.QuestionType{
	"MCQ":     types.QuestionMCQ,
	"MSQ":     types.QuestionMSQ,
	"BOOLEAN": types.QuestionBoolean,
	"BOOL":    types.QuestionBoolean,
	"NAT":     types.QuestionNAT,
	"NUMERIC": types.QuestionNAT,
	"SA":      types.QuestionSA,
	"TEXT":    types.QuestionSA,
}

// Normalizer builds canonical exams. Now and NewID may be replaced by tests.
//
// Timestamp ids are strictly increasing per Normalizer: an exam built in
// the same second as the previous one takes the next free second.
type Normalizer struct {
	cfg types.NormalizeConfig

	mu       sync.Mutex
	lastUnix int64

	// Now supplies the clock for timestamp ids.
	Now func() time.Time

	// NewID overrides the configured id scheme when set.
	NewID func() string
}

// New returns a Normalizer for cfg.
func New(cfg types.NormalizeConfig) *Normalizer {
	return &Normalizer{cfg: cfg, Now: time.Now}
}

// Normalize converts one raw paper document. It returns ErrNoQuestions when
// the document holds no questions.
func (n *Normalizer) Normalize(doc types.RawPaperDocument, resolved assets.Resolved) (*types.Exam, error) {
	return n.Build(DocumentTree(doc), resolved, "")
}

// Build converts an arbitrary decoded document (saved raw document, page
// props, or a bare question_paper object). examID is used as the exam id
// when non-empty; otherwise one is generated.
func (n *Normalizer) Build(tree map[string]any, resolved assets.Resolved, examID string) (*types.Exam, error) {
	root := Record(tree)
	questions := Questions(root)
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	meta := Metadata(root)

	if examID == "" {
		examID = n.generateID()
	}

	exam := &types.Exam{
		ID:        examID,
		Title:     stringOr(meta, examTitleKeys, defaultTitle),
		Subject:   subjectOf(meta, questions),
		Year:      stringOr(meta, examYearKeys, defaultYear),
		Questions: make([]types.Question, 0, len(questions)),
	}
	exam.Duration, _ = meta.Number(examDurationKeys...)
	exam.Marks, _ = meta.Number(examMarksKeys...)

	for i, q := range questions {
		exam.Questions = append(exam.Questions, n.question(q, fmt.Sprintf("%s-q%d", examID, i+1), resolved))
	}
	return exam, nil
}

func (n *Normalizer) question(q Record, id string, resolved assets.Resolved) types.Question {
	rawType, _ := q.String(questionTypeKeys...)
	qt := canonicalType(rawType)

	out := types.Question{
		ID:      id,
		Type:    qt,
		Text:    AssembleText(q),
		Options: []string{},
	}
	out.Marks, _ = q.Number(questionMarkKeys...)

	for _, ref := range questionImages(q) {
		out.Text += "\n\n![Image](" + n.imageRef(ref, assets.KindQuestion, resolved) + ")"
	}

	var correct []int
	for i, opt := range q.Records(optionsKey) {
		optText, _ := opt.String(optionTextKeys...)
		if ref := optionImage(opt); ref != "" {
			optText += " ![Image](" + n.imageRef(ref, assets.KindOption, resolved) + ")"
		}
		out.Options = append(out.Options, optText)
		if opt.Truthy(optionCorrectKeys...) {
			correct = append(correct, i)
		}
	}

	switch qt {
	case types.QuestionMCQ, types.QuestionBoolean:
		if len(correct) > 0 {
			out.CorrectIndex = types.SingleIndex(correct[0])
		}
	case types.QuestionMSQ:
		out.CorrectIndex = types.MultiIndex(correct)
	case types.QuestionNAT, types.QuestionSA:
		out.CorrectValue = CorrectValue(q)
	}
	return out
}

// AssembleText joins question_text_1..5 with single spaces, then appends
// each question_texts entry that is not already contained in the text.
func AssembleText(q Record) string {
	var parts []string
	for i := 1; i <= maxTextFields; i++ {
		if t, ok := q.String(fmt.Sprintf(questionTextField, i)); ok {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, " ")
	for _, v := range q.List(questionTextsKey) {
		t := strings.TrimSpace(stringify(v))
		if t == "" || strings.Contains(text, t) {
			continue
		}
		if text == "" {
			text = t
		} else {
			text += " " + t
		}
	}
	return text
}

// CorrectValue derives a numeric or short answer from value_start and
// value_end: "{start} - {end}" for a range, "{start}" otherwise, nil when
// start is absent.
func CorrectValue(q Record) *string {
	start, ok := q.String(valueStartKeys...)
	if !ok {
		return nil
	}
	if end, ok := q.String(valueEndKeys...); ok && end != start {
		v := start + " - " + end
		return &v
	}
	return &start
}

// questionImages returns the numbered image fields, bucket-prefixed, then
// the entries of the image URL list.
func questionImages(q Record) []string {
	var refs []string
	for i := 1; i <= maxImageFields; i++ {
		if v, ok := q.String(fmt.Sprintf(questionImageField, i)); ok {
			refs = append(refs, assets.QuestionFieldRef(v))
		}
	}
	for _, v := range q.List(questionImagesKey) {
		if s := strings.TrimSpace(stringify(v)); s != "" {
			refs = append(refs, s)
		}
	}
	return refs
}

// optionImage returns the option's explicit image URL, or its raw image
// name placed in the option bucket.
func optionImage(opt Record) string {
	if u, ok := opt.String(optionImageURLKeys...); ok {
		return u
	}
	if v, ok := opt.String(optionImageKeys...); ok {
		return assets.OptionFallbackRef(v)
	}
	return ""
}

// imageRef returns images/{filename} for a downloaded image, otherwise a
// public URL for it.
func (n *Normalizer) imageRef(ref string, kind assets.RefKind, resolved assets.Resolved) string {
	if name, ok := resolved.Lookup(ref, kind); ok {
		return localImagePrefix + name
	}
	if n.cfg.CDNBase != "" {
		return assets.CDNURL(n.cfg.CDNBase, ref, kind == assets.KindOption)
	}
	if n.cfg.SourceBase != "" {
		return assets.ResolveURL(n.cfg.SourceBase, ref)
	}
	return ref
}

func (n *Normalizer) generateID() string {
	if n.NewID != nil {
		return n.NewID()
	}
	if n.cfg.IDScheme == types.IDUUID {
		return "exam-" + uuid.NewString()
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	sec := now().Unix()
	if sec <= n.lastUnix {
		sec = n.lastUnix + 1
	}
	n.lastUnix = sec
	return "exam-" + strconv.FormatInt(sec, 10)
}

func canonicalType(raw string) types.QuestionType {
	if qt, ok := typeAliases[strings.ToUpper(raw)]; ok {
		return qt
	}
	return types.QuestionType(raw)
}

func subjectOf(meta Record, questions []Record) string {
	if s, ok := meta.String(examSubjectKeys...); ok {
		return s
	}
	for _, q := range append([]Record{meta}, questions...) {
		if v, ok := q.Path(courseSubjectPath...); ok {
			if s := strings.TrimSpace(stringify(v)); s != "" {
				return s
			}
		}
	}
	return defaultSubject
}

func stringOr(r Record, keys []string, fallback string) string {
	if s, ok := r.String(keys...); ok {
		return s
	}
	return fallback
}
