package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/justestif/moodtunes/internal/emotion"
)

// Templates manages HTML template rendering.
type Templates struct {
	templates map[string]*template.Template
	funcs     template.FuncMap
}

// NewTemplates creates a new template manager by loading templates from the given filesystem.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{
		templates: make(map[string]*template.Template),
		funcs:     defaultFuncs(),
	}

	if templatesFS == nil {
		return t, nil
	}
	if err := t.load(templatesFS); err != nil {
		return nil, err
	}

	return t, nil
}

// Render renders a page template with the given data.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.templates[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}

	// Execute the "base" template which includes the page content
	return tmpl.ExecuteTemplate(w, "base", data)
}

// load parses every page together with the layouts.
func (t *Templates) load(templatesFS fs.FS) error {
	layouts, err := fs.Glob(templatesFS, "layouts/*.html")
	if err != nil {
		return fmt.Errorf("finding layouts: %w", err)
	}

	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return fmt.Errorf("finding pages: %w", err)
	}

	for _, page := range pages {
		name := filepath.Base(page)
		name = name[:len(name)-len(".html")]

		files := append([]string{page}, layouts...)

		tmpl, err := template.New(name).Funcs(t.funcs).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.templates[name] = tmpl
	}

	return nil
}

// defaultFuncs returns the default template functions.
func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"moodColor": moodColor,
	}
}

// moodColor returns an HSL color for a mood's energy and valence.
// Energy maps to hue (cool indigo to warm orange), valence to saturation and
// lightness.
func moodColor(energy, valence float64) template.CSS {
	hue := 264 - (energy * 229)
	if hue < 0 {
		hue += 360
	}
	saturation := 60 + (valence * 40)
	lightness := 40 + (valence * 20)
	return template.CSS(fmt.Sprintf("hsl(%.0f, %.0f%%, %.0f%%)", hue, saturation, lightness)) //nolint:gosec // built from numbers only
}

// PageData contains common data passed to all page templates.
type PageData struct {
	Title       string
	CurrentPath string
}

// HomePageData contains data for the home page template.
type HomePageData struct {
	PageData
	Moods []MoodData
}

// MoodData describes one selectable mood on the landing page.
type MoodData struct {
	Name    string
	Energy  float64
	Valence float64
}

func moodData() []MoodData {
	moods := make([]MoodData, len(emotion.Moods))
	for i, m := range emotion.Moods {
		f := emotion.IdealFeatures(m)
		moods[i] = MoodData{Name: m.String(), Energy: f.Energy, Valence: f.Valence}
	}
	return moods
}
