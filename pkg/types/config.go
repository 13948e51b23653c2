package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ProtocolConfig holds settings for the Inertia protocol client.
type ProtocolConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the platform origin, e.g. "https://quizpractice.space".
	// The entry page is fetched from here to discover the version token.
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// IDScheme selects how exam identifiers are generated.
type IDScheme string

const (
	// IDTimestamp yields "exam-{unix seconds}". Two exams normalized within
	// the same second collide.
	IDTimestamp IDScheme = "timestamp"

	// IDUUID yields "exam-{random uuid}".
	IDUUID IDScheme = "uuid"
)

// AssetConfig holds settings for image resolution and download.
type AssetConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL prefixes relative image references.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// CDNBase is the public image host used in exam text when an image
	// was not downloaded. Empty falls back to the platform source URL.
	CDNBase string `json:"cdn_base" yaml:"cdn_base"`

	// Workers bounds parallel image downloads within one paper (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// Download disables image downloads when false.
	Download bool `json:"download" yaml:"download"`
}

// NormalizeConfig holds settings for the raw-to-canonical normalizer.
type NormalizeConfig struct {
	// IDScheme selects the exam id generator (default timestamp).
	IDScheme IDScheme `json:"id_scheme" yaml:"id_scheme"`

	// CDNBase mirrors AssetConfig.CDNBase for unresolved images.
	CDNBase string `json:"cdn_base" yaml:"cdn_base"`

	// SourceBase is the platform origin used when CDNBase is empty.
	SourceBase string `json:"source_base" yaml:"source_base"`
}

// SubjectMatch selects how exam subjects are matched to library documents.
type SubjectMatch string

const (
	MatchExact SubjectMatch = "exact"
	MatchFold  SubjectMatch = "fold"
)

// LibraryConfig holds settings for the subject library store.
type LibraryConfig struct {
	// Dir holds {slug}.json subject documents and the shared images/ directory.
	Dir string `json:"dir" yaml:"dir"`

	// SubjectMatch selects exact (default) or case-insensitive matching.
	SubjectMatch SubjectMatch `json:"subject_match" yaml:"subject_match"`

	// ImagePrefix replaces the "images/" prefix of image references when
	// an exam is stored. Empty keeps "images/".
	ImagePrefix string `json:"image_prefix,omitempty" yaml:"image_prefix,omitempty"`
}

// Routes holds the path templates of the platform's content hierarchy.
// "{exam}", "{course}" and "{paper}" are substituted with identifiers.
type Routes struct {
	Entry  string `json:"entry" yaml:"entry"`
	Exam   string `json:"exam" yaml:"exam"`
	Course string `json:"course" yaml:"course"`
	Paper  string `json:"paper" yaml:"paper"`
}

// CrawlConfig holds settings for the discovery crawler.
type CrawlConfig struct {
	// Limit is the number of papers to persist before stopping (0 = no limit).
	Limit int `json:"limit" yaml:"limit"`

	// NameFilter restricts the crawl to exams whose name contains it,
	// case-insensitively. Empty visits every exam.
	NameFilter string `json:"name_filter,omitempty" yaml:"name_filter,omitempty"`

	// PaperDelay is the politeness interval between paper fetches (default 1s).
	PaperDelay time.Duration `json:"paper_delay" yaml:"paper_delay"`

	// SkipHarvested skips papers already recorded in the harvest ledger.
	SkipHarvested bool `json:"skip_harvested" yaml:"skip_harvested"`

	Routes Routes `json:"routes" yaml:"routes"`
}

// HarvestConfig groups all stage configurations for the pipeline.
type HarvestConfig struct {
	Protocol  ProtocolConfig  `json:"protocol" yaml:"protocol"`
	Assets    AssetConfig     `json:"assets" yaml:"assets"`
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize"`
	Library   LibraryConfig   `json:"library" yaml:"library"`
	Crawl     CrawlConfig     `json:"crawl" yaml:"crawl"`

	// WorkDir holds raw documents, downloaded images and the ledger database.
	WorkDir string `json:"work_dir" yaml:"work_dir"`
}
