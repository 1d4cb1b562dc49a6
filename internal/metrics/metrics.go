package metrics

import "sync"

// Event names counted by the relay.
const (
	SessionCreated         = "session_created"
	SessionRemoved         = "session_removed"
	UploadRegistered       = "upload_registered"
	UploadDuplicateIgnored = "upload_duplicate_ignored"
	DownloadResolved       = "download_resolved"
	DownloadNotFound       = "download_not_found"
	DownloaderNotifySkip   = "downloader_notify_skipped"
	ICERequest             = "ice_request"
	ICERemoteFetch         = "ice_remote_fetch"
	ICERemoteFetchFailure  = "ice_remote_fetch_failure"
	ICECacheHit            = "ice_cache_hit"
	WSConnectionOpened     = "ws_connection_opened"
	WSConnectionClosed     = "ws_connection_closed"
	WSBadMessage           = "ws_bad_message"
	WSRateLimited          = "ws_rate_limited"
	CollaboratorFailure    = "collaborator_failure"
)

// Metrics is a concurrency-safe counter registry.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
