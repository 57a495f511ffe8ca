package report

// QuantSupport grades how much numeric evidence backs a signal.
type QuantSupport string

const (
	QuantNone   QuantSupport = "none"
	QuantLight  QuantSupport = "light"
	QuantStrong QuantSupport = "strong"
)

// Score maps the grade onto [0,1] for confidence weighting.
func (q QuantSupport) Score() float64 {
	switch q {
	case QuantStrong:
		return 1.0
	case QuantLight:
		return 0.5
	default:
		return 0.0
	}
}

// Signal is a single dated finding produced by the extraction step.
// PublishedDate is kept as the raw string so an unparseable value can be
// reported against this signal instead of failing the whole load. Scores
// outside [0,1] load as written and are clamped when confidence is computed.
type Signal struct {
	ID            string       `yaml:"id" json:"id" validate:"required"`
	PublishedDate string       `yaml:"published_date" json:"published_date"`
	Category      string       `yaml:"category" json:"category"`
	Strength      float64      `yaml:"strength" json:"strength"`
	USFit         float64      `yaml:"us_fit" json:"us_fit"`
	QuantSupport  QuantSupport `yaml:"quant_support" json:"quant_support" validate:"omitempty,oneof=none light strong"`
	SourceGrade   string       `yaml:"source_grade" json:"source_grade" validate:"omitempty,oneof=A B C D"`
	Support       []int        `yaml:"support" json:"support" validate:"dive,gte=1"`
	OnSpine       bool         `yaml:"on_spine" json:"on_spine"`
	Contradicted  bool         `yaml:"contradicted" json:"contradicted"`
}

// Source is one entry of a run's numbered source list.
type Source struct {
	ID            int     `yaml:"id" json:"id" validate:"gte=1"`
	Title         string  `yaml:"title" json:"title"`
	URL           string  `yaml:"url" json:"url" validate:"required"`
	Publisher     string  `yaml:"publisher" json:"publisher"`
	PublishedDate string  `yaml:"published_date" json:"published_date"`
	Credibility   float64 `yaml:"credibility" json:"credibility"`
}

// WindowSpec is the coverage window as written in a bundle file.
type WindowSpec struct {
	Start string `yaml:"start" json:"start" validate:"required"`
	End   string `yaml:"end" json:"end" validate:"required"`
}

// Bundle is everything a finalization check needs from one report run.
type Bundle struct {
	Title    string     `yaml:"title,omitempty" json:"title,omitempty"`
	Window   WindowSpec `yaml:"window" json:"window"`
	Signals  []Signal   `yaml:"signals" json:"signals" validate:"dive"`
	Sources  []Source   `yaml:"sources" json:"sources" validate:"dive"`
	Body     string     `yaml:"body,omitempty" json:"body,omitempty"`
	BodyFile string     `yaml:"body_file,omitempty" json:"body_file,omitempty"`

	// Path is the file the bundle was loaded from, if any.
	Path string `yaml:"-" json:"-"`
}

// SourceIDs returns the ids of all sources in list order.
func (b *Bundle) SourceIDs() []int {
	ids := make([]int, len(b.Sources))
	for i, s := range b.Sources {
		ids[i] = s.ID
	}
	return ids
}

// SourceByID looks up a source by its citation number.
func (b *Bundle) SourceByID(id int) (Source, bool) {
	for _, s := range b.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}
