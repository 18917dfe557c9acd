package asker

import (
	"fmt"
	"math/rand/v2"

	"github.com/querypilot/querypilot/internal/fixture"
)

type Question struct {
	Sequence int64
	Text     string
}

type Generator struct {
	rnd        *rand.Rand
	courses    []string
	categories []string
	students   []string
	sequence   int64
}

var questionTemplates = []func(g *Generator) string{
	func(*Generator) string { return "How many students are there?" },
	func(*Generator) string { return "How many enrollments are there per course?" },
	func(*Generator) string { return "Which course has the most enrollments?" },
	func(*Generator) string { return "List all students with grade A" },
	func(g *Generator) string { return fmt.Sprintf("How many students are enrolled in %s?", g.pick(g.courses)) },
	func(g *Generator) string { return fmt.Sprintf("List the students enrolled in %s", g.pick(g.courses)) },
	func(g *Generator) string { return fmt.Sprintf("Which courses are in the %s category?", g.pick(g.categories)) },
	func(g *Generator) string { return fmt.Sprintf("Which courses is %s enrolled in?", g.pick(g.students)) },
	func(g *Generator) string { return fmt.Sprintf("How many enrollments happened in %d?", 2023+g.rnd.IntN(3)) },
}

func NewGenerator(seed int64) *Generator {
	ds := fixture.Default(seed)
	g := &Generator{rnd: rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))}
	seenCategory := map[string]struct{}{}
	for _, course := range ds.Courses {
		g.courses = append(g.courses, course.Name)
		if _, ok := seenCategory[course.Category]; !ok {
			seenCategory[course.Category] = struct{}{}
			g.categories = append(g.categories, course.Category)
		}
	}
	for _, student := range ds.Students {
		g.students = append(g.students, student.Name)
	}
	return g
}

func (g *Generator) NextQuestion() Question {
	g.sequence++
	template := questionTemplates[g.rnd.IntN(len(questionTemplates))]
	return Question{Sequence: g.sequence, Text: template(g)}
}

func (g *Generator) pick(values []string) string {
	return values[g.rnd.IntN(len(values))]
}
