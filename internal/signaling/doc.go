// Package signaling is the relay's WebSocket surface.
//
// Each browser tab holds one WebSocket. Over it an uploader registers a file
// and receives the identifiers to share, a downloader resolves those
// identifiers into file metadata, and either side may ask for the ICE servers
// it needs to reach the other directly. Messages are JSON envelopes:
//
//	client -> server  {"type":"upload","id":1,"data":{"fileName":...,"fileSize":...,"fileType":...}}
//	server -> client  {"type":"reply","id":1,"data":{"token":...,"shortToken":...}}
//	server -> client  {"type":"updateDownloaders","data":[{"ip":...}]}
//
// A request without an id is processed but never answered.
package signaling
