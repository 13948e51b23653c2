// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/pyq-harvester/internal/assets"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

// DocumentTree returns doc as a decoded JSON tree, the form Build reads.
func DocumentTree(doc types.RawPaperDocument) map[string]any {
	questions := make([]any, len(doc.Questions))
	for i, q := range doc.Questions {
		questions[i] = q
	}
	tree := map[string]any{
		"metadata":  doc.Metadata,
		"questions": questions,
		"url":       doc.URL,
	}
	if doc.Metadata == nil {
		delete(tree, "metadata")
	}
	return tree
}

// Questions returns the question records at the first known list path that
// holds a non-empty list.
func Questions(root Record) []Record {
	for _, path := range questionListPaths {
		v, ok := root.Path(path...)
		if !ok {
			continue
		}
		list, _ := v.([]any)
		var out []Record
		for _, item := range list {
			if r := AsRecord(item); r != nil {
				out = append(out, r)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Metadata returns the paper-level metadata object, or an empty record.
func Metadata(root Record) Record {
	for _, path := range metadataPaths {
		if v, ok := root.Path(path...); ok {
			if r := AsRecord(v); r != nil {
				return r
			}
		}
	}
	return Record{}
}

// RawDocument builds the raw paper document for page props fetched from
// url. Questions come from the first known list path; metadata is the
// question_paper object.
func RawDocument(props map[string]any, url string) types.RawPaperDocument {
	root := Record{"props": props}
	doc := types.RawPaperDocument{
		Metadata: map[string]any(Metadata(root)),
		URL:      url,
	}
	for _, q := range Questions(root) {
		doc.Questions = append(doc.Questions, map[string]any(q))
	}
	return doc
}

// CollectImages enumerates the image references to download for raw
// questions, in document order: the image URL list, numbered image fields
// with an image extension, then per option its explicit URL or bucketed
// raw name. Duplicates are dropped.
func CollectImages(questions []map[string]any) []assets.Ref {
	var refs []assets.Ref
	seen := make(map[string]bool)
	add := func(path string, kind assets.RefKind) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		refs = append(refs, assets.Ref{Path: path, Kind: kind})
	}

	for _, raw := range questions {
		q := Record(raw)
		for _, v := range q.List(questionImagesKey) {
			add(strings.TrimSpace(stringify(v)), assets.KindQuestion)
		}
		for i := 1; i <= maxImageFields; i++ {
			v, _ := q.String(fmt.Sprintf(questionImageField, i))
			if hasImageExt(v) {
				add(assets.QuestionFieldRef(v), assets.KindQuestion)
			}
		}
		for _, opt := range q.Records(optionsKey) {
			add(optionImage(opt), assets.KindOption)
		}
	}
	return refs
}

func hasImageExt(v string) bool {
	lower := strings.ToLower(v)
	for _, ext := range imageExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// markdownImage matches ![alt](ref) and captures ref.
var markdownImage = regexp.MustCompile(`(!\[[^\]]*\]\()([^)\s]+)(\))`)

// RewriteImages applies fn to every markdown image reference in the exam's
// question texts and options. It visits only exam, questions and options.
func RewriteImages(exam *types.Exam, fn func(ref string) string) {
	rewrite := func(s string) string {
		return markdownImage.ReplaceAllStringFunc(s, func(m string) string {
			parts := markdownImage.FindStringSubmatch(m)
			return parts[1] + fn(parts[2]) + parts[3]
		})
	}
	for qi := range exam.Questions {
		q := &exam.Questions[qi]
		q.Text = rewrite(q.Text)
		for oi := range q.Options {
			q.Options[oi] = rewrite(q.Options[oi])
		}
	}
}

// LocalImagePrefixer returns a RewriteImages function that moves local
// images/ references under prefix, leaving remote URLs untouched.
func LocalImagePrefixer(prefix string) func(string) string {
	return func(ref string) string {
		if !strings.HasPrefix(ref, localImagePrefix) {
			return ref
		}
		return strings.TrimRight(prefix, "/") + "/" + strings.TrimPrefix(ref, localImagePrefix)
	}
}
