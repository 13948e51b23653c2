// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/pyq-harvester/internal/normalize"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

// Exam is one entry of the platform's exam list.
type Exam struct {
	ID   string
	Name string
}

// Course is one course offered under an exam.
type Course struct {
	ID   string
	Name string
}

// Bundle groups the papers of a course.
type Bundle struct {
	Name   string
	Papers []Paper
}

// Paper is one question paper reference.
type Paper struct {
	UUID string
	Name string
}

// DefaultBundle names the bundle synthesized from a flat paper list.
const DefaultBundle = "Default"

var (
	idKeys         = []string{"id", "slug"}
	examNameKeys   = []string{"name", "exam_name", "title"}
	courseNameKeys = []string{"name", "course_name", "title"}
	bundleNameKeys = []string{"name", "group_name", "title"}
	paperIDKeys    = []string{"uuid", "id"}
	paperNameKeys  = []string{"question_paper_name", "name", "title"}
)

const (
	examsKey  = "exams"
	courseKey = "courses"
	groupsKey = "groups"
	papersKey = "question_papers"
)

func examsFrom(props map[string]any) []Exam {
	var out []Exam
	for _, r := range normalize.Record(props).Records(examsKey) {
		id, ok := r.String(idKeys...)
		if !ok {
			continue
		}
		out = append(out, Exam{ID: id, Name: stringOr(r, examNameKeys, id)})
	}
	return out
}

func coursesFrom(props map[string]any) []Course {
	var out []Course
	for _, r := range normalize.Record(props).Records(courseKey) {
		id, ok := r.String(idKeys...)
		if !ok {
			continue
		}
		out = append(out, Course{ID: id, Name: stringOr(r, courseNameKeys, id)})
	}
	return out
}

// bundlesFrom resolves the bundles of courseID from a course page, trying
// a direct groups list, then the groups of the matching courses[] entry,
// then a flat question_papers list as one Default bundle.
func bundlesFrom(props map[string]any, courseID string) []Bundle {
	root := normalize.Record(props)
	if groups := root.Records(groupsKey); len(groups) > 0 {
		return bundles(groups)
	}
	for _, c := range root.Records(courseKey) {
		if id, _ := c.String(idKeys...); id == courseID {
			if groups := c.Records(groupsKey); len(groups) > 0 {
				return bundles(groups)
			}
		}
	}
	if papers := papersFrom(root); len(papers) > 0 {
		return []Bundle{{Name: DefaultBundle, Papers: papers}}
	}
	return nil
}

func bundles(groups []normalize.Record) []Bundle {
	out := make([]Bundle, 0, len(groups))
	for i, g := range groups {
		name, ok := g.String(bundleNameKeys...)
		if !ok {
			name = DefaultBundle
			if i > 0 {
				name += "_" + strconv.Itoa(i+1)
			}
		}
		out = append(out, Bundle{Name: name, Papers: papersFrom(g)})
	}
	return out
}

func papersFrom(r normalize.Record) []Paper {
	var out []Paper
	for _, p := range r.Records(papersKey) {
		id, ok := p.String(paperIDKeys...)
		if !ok {
			continue
		}
		out = append(out, Paper{UUID: id, Name: stringOr(p, paperNameKeys, id)})
	}
	return out
}

func stringOr(r normalize.Record, keys []string, fallback string) string {
	if s, ok := r.String(keys...); ok {
		return s
	}
	return fallback
}

// expand substitutes identifiers into a route template.
func expand(route string, exam, course, paper string) string {
	return strings.NewReplacer(
		"{exam}", url.PathEscape(exam),
		"{course}", url.PathEscape(course),
		"{paper}", url.PathEscape(paper),
	).Replace(route)
}

// DefaultRoutes are the platform's page routes.
func DefaultRoutes() types.Routes {
	return types.Routes{
		Entry:  "/",
		Exam:   "/exams/{exam}",
		Course: "/courses/{course}",
		Paper:  "/question-paper/practise/{exam}/{paper}",
	}
}

func withDefaults(r types.Routes) types.Routes {
	d := DefaultRoutes()
	if r.Entry == "" {
		r.Entry = d.Entry
	}
	if r.Exam == "" {
		r.Exam = d.Exam
	}
	if r.Course == "" {
		r.Course = d.Course
	}
	if r.Paper == "" {
		r.Paper = d.Paper
	}
	return r
}
