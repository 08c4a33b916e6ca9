package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Group describes one independently tracked stream-group (a language edition).
type Group struct {
	Code    string `yaml:"code"`
	Project string `yaml:"project"`
	Name    string `yaml:"name"`
}

// Video holds the frame budget and encoding parameters shared by every render.
type Video struct {
	FPS            int
	SecondsPerDay  int
	Width          int
	Height         int
	Scale          float64
	PreRollFactor  float64
	JPEGQuality    int
	Workers        int
	MaxAttempts    int
	StaggerDelay   time.Duration
	ReadyTimeout   time.Duration
	FFmpegPath     string
	FFprobePath    string
	BrowserBin     string
	Headless       bool
	WindowDays     int
	RefreshDays    int
	KeepDateDirs   int
	RetainedDates  int
	TopN           int
	BaseThreshold  float64
	AudioBitrate   string
	MusicExtension []string
}

// TotalFramesPerDay is the fixed frame budget for one day segment.
func (v Video) TotalFramesPerDay() int {
	return v.FPS * v.SecondsPerDay
}

// Config is the immutable configuration value threaded through constructors.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	BaseDir   string
	DocsDir   string
	DataDir   string
	VideoDir  string
	MusicDir  string
	ReportDir string

	UserAgent string
	APIBase   string

	Groups []Group
	Video  Video
}

// DefaultGroups is used when no groups file is configured.
var DefaultGroups = []Group{
	{Code: "en", Project: "en.wikipedia.org", Name: "English"},
	{Code: "zh", Project: "zh.wikipedia.org", Name: "中文"},
	{Code: "ja", Project: "ja.wikipedia.org", Name: "日本語"},
	{Code: "de", Project: "de.wikipedia.org", Name: "Deutsch"},
	{Code: "fr", Project: "fr.wikipedia.org", Name: "Français"},
	{Code: "ru", Project: "ru.wikipedia.org", Name: "Русский"},
	{Code: "it", Project: "it.wikipedia.org", Name: "Italiano"},
}

// DefaultVideo returns the production frame budget: 24 seconds per day at
// 60 fps, rendered by two workers with up to three attempts per chunk.
func DefaultVideo() Video {
	return Video{
		FPS:            60,
		SecondsPerDay:  24,
		Width:          1920,
		Height:         1080,
		Scale:          4.0 / 3.0,
		PreRollFactor:  1.0,
		JPEGQuality:    90,
		Workers:        2,
		MaxAttempts:    3,
		StaggerDelay:   1500 * time.Millisecond,
		ReadyTimeout:   20 * time.Second,
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		Headless:       true,
		WindowDays:     7,
		RefreshDays:    3,
		KeepDateDirs:   15,
		RetainedDates:  30,
		TopN:           10,
		BaseThreshold:  100.0,
		AudioBitrate:   "192k",
		MusicExtension: []string{".flac", ".mp3", ".wav", ".m4a", ".ogg"},
	}
}

// FromEnv builds a Config from environment variables, falling back to defaults.
// Call Load first to pick up a .env file.
func FromEnv() (Config, error) {
	base := GetEnv("REEL_BASE_DIR", ".")
	docs := GetEnv("REEL_DOCS_DIR", filepath.Join(base, "docs"))

	v := DefaultVideo()
	v.FPS = GetEnvInt("VIDEO_FPS", v.FPS)
	v.SecondsPerDay = GetEnvInt("VIDEO_SECONDS_PER_DAY", v.SecondsPerDay)
	v.Width = GetEnvInt("VIDEO_WIDTH", v.Width)
	v.Height = GetEnvInt("VIDEO_HEIGHT", v.Height)
	v.Scale = GetEnvFloat("VIDEO_SCALE", v.Scale)
	v.PreRollFactor = GetEnvFloat("VIDEO_PRE_ROLL_FACTOR", v.PreRollFactor)
	v.Workers = GetEnvInt("RENDER_WORKERS", v.Workers)
	v.MaxAttempts = GetEnvInt("RENDER_MAX_ATTEMPTS", v.MaxAttempts)
	v.StaggerDelay = GetEnvDuration("RENDER_STAGGER", v.StaggerDelay)
	v.ReadyTimeout = GetEnvDuration("RENDER_READY_TIMEOUT", v.ReadyTimeout)
	v.FFmpegPath = GetEnv("FFMPEG_PATH", v.FFmpegPath)
	v.FFprobePath = GetEnv("FFPROBE_PATH", v.FFprobePath)
	v.BrowserBin = GetEnv("BROWSER_BIN", v.BrowserBin)
	v.Headless = GetEnvBool("BROWSER_HEADLESS", v.Headless)
	v.RetainedDates = GetEnvInt("HISTORY_WINDOW", v.RetainedDates)
	v.KeepDateDirs = GetEnvInt("KEEP_DATE_DIRS", v.KeepDateDirs)
	v.TopN = GetEnvInt("TOP_N", v.TopN)

	cfg := Config{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),
		BaseDir:   base,
		DocsDir:   docs,
		DataDir:   GetEnv("REEL_DATA_DIR", filepath.Join(docs, "data")),
		VideoDir:  GetEnv("REEL_VIDEO_DIR", filepath.Join(base, "videos")),
		MusicDir:  GetEnv("REEL_MUSIC_DIR", filepath.Join(base, "musics")),
		ReportDir: GetEnv("REEL_REPORT_DIR", filepath.Join(base, "data")),
		UserAgent: GetEnv("USER_AGENT", "trend-reel/1.0"),
		APIBase:   GetEnv("PAGEVIEWS_API", "https://wikimedia.org/api/rest_v1/metrics/pageviews"),
		Groups:    DefaultGroups,
		Video:     v,
	}

	if path := GetEnv("REEL_GROUPS_FILE", ""); path != "" {
		groups, err := LoadGroups(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Groups = groups
	}
	return cfg, nil
}

type groupsFile struct {
	Groups []Group `yaml:"groups"`
}

// LoadGroups reads stream-group definitions from a YAML file of the form
//
//	groups:
//	  - code: en
//	    project: en.wikipedia.org
//	    name: English
func LoadGroups(path string) ([]Group, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read groups file: %w", err)
	}
	var f groupsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse groups file: %w", err)
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("groups file %s defines no groups", path)
	}
	for i, g := range f.Groups {
		if g.Code == "" || g.Project == "" {
			return nil, fmt.Errorf("group %d: code and project are required", i)
		}
	}
	return f.Groups, nil
}

// Group returns the group with the given code.
func (c Config) Group(code string) (Group, bool) {
	for _, g := range c.Groups {
		if g.Code == code {
			return g, true
		}
	}
	return Group{}, false
}
