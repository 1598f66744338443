package discovery

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps media types to the work-queue task that processes them. It is
// populated explicitly during initialization; lookups are pure and safe for
// concurrent use afterward.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]string)}
}

// Register binds a media type to a task name. Later registrations for the
// same media type win, which lets callers override defaults.
func (r *Registry) Register(mediaType, taskName string) {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	taskName = strings.TrimSpace(taskName)
	if mediaType == "" || taskName == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[mediaType] = taskName
}

// Lookup returns the task registered for the media type.
func (r *Registry) Lookup(mediaType string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[strings.ToLower(strings.TrimSpace(mediaType))]
	return task, ok
}

// MediaTypes returns the registered media types, sorted.
func (r *Registry) MediaTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.tasks))
	for mt := range r.tasks {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// TaskIngestMedia is the work-queue task that processes newly discovered files.
const TaskIngestMedia = "ingest_media"

// TaskRelinkMedia is the work-queue task that refreshes a record after a move.
const TaskRelinkMedia = "relink_media"

// RegisterDefaults binds the stock media types Corral handles out of the box.
func RegisterDefaults(r *Registry) {
	for _, mediaType := range []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		"image/tiff",
		"video/mp4",
		"video/quicktime",
		"video/webm",
		"video/x-matroska",
		"audio/mpeg",
		"audio/flac",
		"audio/wav",
	} {
		r.Register(mediaType, TaskIngestMedia)
	}
}
