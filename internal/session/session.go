package session

import (
	"sync"
	"time"
)

// ConnID identifies a live signaling connection. A Session stores the owner's
// ConnID rather than a reference to the connection itself.
type ConnID string

// FileInfo is the metadata an uploader publishes about the offered file.
type FileInfo struct {
	Name string `json:"fileName"`
	Size int64  `json:"fileSize"`
	Type string `json:"fileType"`
}

// Downloader records one successful download resolution.
type Downloader struct {
	IP string `json:"ip"`
}

// Session is a single upload offer. Tokens and owner are fixed at creation;
// the file metadata and downloader list are guarded by mu.
type Session struct {
	token      string
	shortToken string
	owner      ConnID
	createdAt  time.Time

	mu          sync.Mutex
	file        FileInfo
	downloaders []Downloader
}

func (s *Session) Token() string        { return s.token }
func (s *Session) ShortToken() string   { return s.shortToken }
func (s *Session) Owner() ConnID        { return s.owner }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// SetFile records the uploader's file metadata.
func (s *Session) SetFile(f FileInfo) {
	s.mu.Lock()
	s.file = f
	s.mu.Unlock()
}

func (s *Session) File() FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// Downloaders returns a copy of the downloader list in append order.
func (s *Session) Downloaders() []Downloader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Downloader(nil), s.downloaders...)
}

// AddDownloader appends d and, while still holding the session lock, calls
// notify with a snapshot of the full list. Concurrent callers therefore
// deliver their snapshots in the same order their appends happened, and each
// snapshot is a prefix of every later one.
//
// The returned slice is the snapshot passed to notify.
func (s *Session) AddDownloader(d Downloader, notify func([]Downloader)) []Downloader {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloaders = append(s.downloaders, d)
	snap := append([]Downloader(nil), s.downloaders...)
	if notify != nil {
		notify(snap)
	}
	return snap
}
