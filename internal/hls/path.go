// Package hls validates untrusted playlist and segment paths before they are
// resolved against a tenant's storage bucket. Two independent checks guard the
// streaming proxy: segment-level validation of the request path, and lexical
// containment of the final object key inside the video's manifest directory.
// A request must pass both; a flaw in one must not alone permit traversal.
package hls

import (
	"path"
	"strings"
)

var allowedExtensions = map[string]string{
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
}

// PathResult reports the outcome of ValidateStreamingPath.
type PathResult struct {
	Valid  bool
	Path   string
	Reason string
}

// ValidateStreamingPath checks the path segments of a streaming request and,
// when every segment is safe, joins them into a relative path. Multi-segment
// paths are allowed so renditions may live in subdirectories
// ("720p/segment_001.ts"). The final segment must carry an allow-listed
// extension.
func ValidateStreamingPath(segments []string) PathResult {
	if len(segments) == 0 {
		return PathResult{Reason: "empty path"}
	}
	for _, segment := range segments {
		switch {
		case segment == "":
			return PathResult{Reason: "empty path segment"}
		case segment == "undefined":
			return PathResult{Reason: "undefined path segment"}
		case strings.ContainsRune(segment, 0):
			return PathResult{Reason: "segment contains NUL byte"}
		case strings.Contains(segment, "\\"):
			return PathResult{Reason: "segment contains backslash"}
		case strings.Contains(segment, ".."):
			return PathResult{Reason: "segment contains parent reference"}
		case strings.HasPrefix(segment, "/"):
			return PathResult{Reason: "absolute path segment"}
		}
	}
	last := segments[len(segments)-1]
	ext := strings.ToLower(path.Ext(last))
	if _, ok := allowedExtensions[ext]; !ok {
		return PathResult{Reason: "file extension not allowed"}
	}
	return PathResult{Valid: true, Path: strings.Join(segments, "/")}
}

// ValidateObjectKey lexically resolves relativePath against baseDir and
// returns the normalized key, or "" when the result would escape baseDir.
// Normalization never touches a filesystem; "." and ".." are resolved purely
// textually so this holds for object-store keys. This is the second line of
// defense and must reject traversal even for callers that skipped
// ValidateStreamingPath.
func ValidateObjectKey(baseDir, relativePath string) string {
	if baseDir == "" || relativePath == "" {
		return ""
	}
	base := strings.TrimSuffix(baseDir, "/")
	joined := path.Join(base, relativePath)
	if joined != base && !strings.HasPrefix(joined, base+"/") {
		return ""
	}
	return joined
}

// ContentTypeForPath maps a streaming path to its response content type by
// extension, defaulting to an opaque binary type.
func ContentTypeForPath(p string) string {
	if ct, ok := allowedExtensions[strings.ToLower(path.Ext(p))]; ok {
		return ct
	}
	return "application/octet-stream"
}
