package worker

import (
	"fmt"
	"strings"

	"github.com/roadmapai/backend/internal/pathgen"
)

// moduleTemplate shapes one curriculum unit before it is bound to a topic.
type moduleTemplate struct {
	title       string
	description string
	objectives  []string
	concepts    []string
	hours       int
}

var templatesByLevel = map[pathgen.GoalLevel][]moduleTemplate{
	pathgen.GoalBeginner: {
		{"Foundations of %s", "Core ideas and vocabulary of %s", []string{"Explain the key concepts", "Set up a working environment"}, []string{"terminology", "tooling"}, 6},
		{"First Steps with %s", "Guided hands-on practice with %s basics", []string{"Complete small guided exercises", "Read simple real examples"}, []string{"fundamental operations", "basic patterns"}, 8},
		{"Everyday %s", "Apply %s to small self-contained tasks", []string{"Build a small project end to end"}, []string{"common workflows", "debugging"}, 8},
		{"Consolidation Project", "A capstone exercise putting the %s basics together", []string{"Ship a beginner project", "Review and refactor it"}, []string{"project structure", "review habits"}, 8},
	},
	pathgen.GoalIntermediate: {
		{"%s Refresher and Gaps", "Audit what you know about %s and close the gaps", []string{"Identify weak areas", "Revisit fundamentals that did not stick"}, []string{"mental model", "idioms"}, 5},
		{"Intermediate %s Techniques", "The patterns working practitioners reach for in %s", []string{"Apply standard patterns", "Recognise anti-patterns"}, []string{"composition", "error handling"}, 8},
		{"%s in Real Projects", "Work with realistic %s codebases and constraints", []string{"Navigate an existing codebase", "Contribute a feature"}, []string{"project conventions", "testing"}, 9},
		{"Performance and Tooling", "Measure and improve %s programs", []string{"Profile a real workload", "Use the ecosystem tooling"}, []string{"profiling", "benchmarks"}, 6},
		{"Capstone: Intermediate %s", "A substantial project demonstrating intermediate command of %s", []string{"Design and build a medium project"}, []string{"design trade-offs", "documentation"}, 8},
	},
	pathgen.GoalAdvanced: {
		{"Advanced %s Internals", "How %s works under the surface", []string{"Explain the runtime/execution model", "Read internals or specification"}, []string{"internals", "memory model"}, 8},
		{"Architecture with %s", "Designing large systems around %s", []string{"Evaluate architectural styles", "Document a system design"}, []string{"architecture", "boundaries"}, 9},
		{"%s at Scale", "Operating %s under production load", []string{"Plan for scale and failure", "Instrument and observe"}, []string{"scalability", "observability"}, 9},
		{"Expert Practice", "Open problems and advanced %s technique", []string{"Study advanced case material", "Contribute to the ecosystem"}, []string{"edge cases", "community practice"}, 7},
		{"Capstone: Advanced %s", "An expert-level project with real-world constraints", []string{"Deliver a production-grade project"}, []string{"trade-off analysis", "operational readiness"}, 9},
	},
}

// buildAnalysis summarises the learner's starting point. Deterministic
// stand-in for the model-written analysis of the external worker.
func buildAnalysis(req pathgen.WorkRequest) string {
	return fmt.Sprintf(
		"Starting point: %s. The path targets %s-level command of %s, building on that background and filling the gaps in between.",
		req.Background, req.GoalLevel, req.Topic)
}

// buildCurriculum binds the level's module templates to the topic.
func buildCurriculum(req pathgen.WorkRequest) pathgen.Curriculum {
	templates, ok := templatesByLevel[req.GoalLevel]
	if !ok {
		templates = templatesByLevel[pathgen.GoalIntermediate]
	}

	modules := make([]pathgen.Module, 0, len(templates))
	total := 0
	for i, tmpl := range templates {
		var prereqs []string
		if i > 0 {
			prereqs = []string{bindTopic(templates[i-1].title, req.Topic)}
		}
		modules = append(modules, pathgen.Module{
			Order:          i + 1,
			Title:          bindTopic(tmpl.title, req.Topic),
			Description:    bindTopic(tmpl.description, req.Topic),
			Objectives:     tmpl.objectives,
			KeyConcepts:    tmpl.concepts,
			EstimatedHours: tmpl.hours,
			Prerequisites:  prereqs,
		})
		total += tmpl.hours
	}

	return pathgen.Curriculum{
		Title:       fmt.Sprintf("Learning Path: %s", req.Topic),
		Description: fmt.Sprintf("A %s-level curriculum for %s", req.GoalLevel, req.Topic),
		TotalHours:  total,
		Modules:     modules,
	}
}

// bindTopic substitutes the topic into a template. Some templates carry no
// placeholder and pass through unchanged.
func bindTopic(tmpl, topic string) string {
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, topic)
}

// buildResources recommends placeholder materials for a module, honouring
// the caller's resource-type preferences.
func buildResources(m pathgen.Module, prefs pathgen.Preferences) []pathgen.Resource {
	var out []pathgen.Resource
	if prefs.IncludeVideos {
		out = append(out, pathgen.Resource{
			Type:     "video",
			Title:    m.Title + " — video walkthrough",
			Duration: "45 min",
		})
	}
	if prefs.IncludeArticles {
		out = append(out, pathgen.Resource{
			Type:     "article",
			Title:    m.Title + " — in depth",
			Duration: "15 min read",
		})
	}
	if prefs.IncludeDocs {
		out = append(out, pathgen.Resource{
			Type:  "documentation",
			Title: m.Title + " — reference documentation",
		})
	}
	return out
}
