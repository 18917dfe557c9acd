// Package fixture owns the three-table sample dataset: its schema, the
// default seed, YAML dataset files, and parquet snapshots of it.
package fixture

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TableStudents    = "students"
	TableCourses     = "courses"
	TableEnrollments = "enrollments"
)

type Student struct {
	ID        int64     `yaml:"id" parquet:"id"`
	Name      string    `yaml:"name" parquet:"name"`
	Grade     string    `yaml:"grade" parquet:"grade"`
	CreatedAt time.Time `yaml:"created_at" parquet:"created_at,timestamp"`
}

type Course struct {
	ID       int64  `yaml:"id" parquet:"id"`
	Name     string `yaml:"name" parquet:"name"`
	Category string `yaml:"category" parquet:"category"`
}

type Enrollment struct {
	ID         int64     `yaml:"id" parquet:"id"`
	StudentID  int64     `yaml:"student_id" parquet:"student_id"`
	CourseID   int64     `yaml:"course_id" parquet:"course_id"`
	EnrolledAt time.Time `yaml:"enrolled_at" parquet:"enrolled_at,timestamp"`
}

type Dataset struct {
	Students    []Student    `yaml:"students"`
	Courses     []Course     `yaml:"courses"`
	Enrollments []Enrollment `yaml:"enrollments"`
}

type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	References string `json:"references,omitempty"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

func Tables() []Table {
	return []Table{
		{Name: TableStudents, Columns: []Column{
			{Name: "id", Type: "integer"},
			{Name: "name", Type: "text"},
			{Name: "grade", Type: "text"},
			{Name: "created_at", Type: "timestamp"},
		}},
		{Name: TableCourses, Columns: []Column{
			{Name: "id", Type: "integer"},
			{Name: "name", Type: "text"},
			{Name: "category", Type: "text"},
		}},
		{Name: TableEnrollments, Columns: []Column{
			{Name: "id", Type: "integer"},
			{Name: "student_id", Type: "integer", References: "students.id"},
			{Name: "course_id", Type: "integer", References: "courses.id"},
			{Name: "enrolled_at", Type: "date"},
		}},
	}
}

func TableNames() []string {
	tables := Tables()
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.Name)
	}
	return names
}

var (
	defaultCreatedAt  = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	enrollmentYears   = []int{2023, 2024, 2025}
	defaultEnrollment = 25
)

// Default builds ten students, five courses and twenty-five enrollments.
// The same seed always yields the same enrollments.
func Default(seed int64) Dataset {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))

	ds := Dataset{
		Courses: []Course{
			{ID: 1, Name: "python", Category: "programming"},
			{ID: 2, Name: "java", Category: "programming"},
			{ID: 3, Name: "math", Category: "stem"},
			{ID: 4, Name: "physics", Category: "stem"},
			{ID: 5, Name: "ai", Category: "tech"},
		},
	}
	for i := 1; i <= 10; i++ {
		ds.Students = append(ds.Students, Student{
			ID:        int64(i),
			Name:      fmt.Sprintf("student%d", i),
			Grade:     "A",
			CreatedAt: defaultCreatedAt,
		})
	}
	for i := 1; i <= defaultEnrollment; i++ {
		studentID := int64(rng.IntN(len(ds.Students)) + 1)
		courseID := int64(rng.IntN(len(ds.Courses)) + 1)
		year := enrollmentYears[rng.IntN(len(enrollmentYears))]
		month := time.Month(rng.IntN(12) + 1)
		day := rng.IntN(28) + 1
		ds.Enrollments = append(ds.Enrollments, Enrollment{
			ID:         int64(i),
			StudentID:  studentID,
			CourseID:   courseID,
			EnrolledAt: time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		})
	}
	return ds
}

func LoadFile(path string) (Dataset, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read fixture file: %w", err)
	}
	var ds Dataset
	if err := yaml.Unmarshal(body, &ds); err != nil {
		return Dataset{}, fmt.Errorf("parse fixture file %q: %w", path, err)
	}
	if err := ds.Validate(); err != nil {
		return Dataset{}, fmt.Errorf("fixture file %q: %w", path, err)
	}
	return ds, nil
}

func (ds Dataset) Validate() error {
	students := make(map[int64]struct{}, len(ds.Students))
	for _, student := range ds.Students {
		if student.ID <= 0 {
			return fmt.Errorf("student %q: id must be > 0", student.Name)
		}
		if _, dup := students[student.ID]; dup {
			return fmt.Errorf("duplicate student id %d", student.ID)
		}
		students[student.ID] = struct{}{}
	}
	courses := make(map[int64]struct{}, len(ds.Courses))
	for _, course := range ds.Courses {
		if course.ID <= 0 {
			return fmt.Errorf("course %q: id must be > 0", course.Name)
		}
		if _, dup := courses[course.ID]; dup {
			return fmt.Errorf("duplicate course id %d", course.ID)
		}
		courses[course.ID] = struct{}{}
	}
	enrollments := make(map[int64]struct{}, len(ds.Enrollments))
	for _, enrollment := range ds.Enrollments {
		if enrollment.ID <= 0 {
			return fmt.Errorf("enrollment id must be > 0")
		}
		if _, dup := enrollments[enrollment.ID]; dup {
			return fmt.Errorf("duplicate enrollment id %d", enrollment.ID)
		}
		enrollments[enrollment.ID] = struct{}{}
		if _, ok := students[enrollment.StudentID]; !ok {
			return fmt.Errorf("enrollment %d: unknown student %d", enrollment.ID, enrollment.StudentID)
		}
		if _, ok := courses[enrollment.CourseID]; !ok {
			return fmt.Errorf("enrollment %d: unknown course %d", enrollment.ID, enrollment.CourseID)
		}
	}
	return nil
}
