// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assets

import (
	"net/url"
	"path"
	"strings"
)

// Conventional bucket paths for bare image filenames.
const (
	QuestionBucket = "/question_images/"
	OptionBucket   = "app/option_images/"
)

// ResolveURL maps an image reference to its download URL: absolute URLs are
// used as-is, references starting with "/" are prefixed with baseURL, and
// anything else is treated as a bare path under baseURL.
func ResolveURL(baseURL, rawRef string) string {
	if rawRef == "" {
		return ""
	}
	if isAbsolute(rawRef) {
		return rawRef
	}
	base := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(rawRef, "/") {
		return base + rawRef
	}
	return base + "/" + rawRef
}

// QuestionFieldRef returns the reference for a numbered question image field
// value, placing bare names in the question bucket.
func QuestionFieldRef(v string) string {
	if v == "" || strings.HasPrefix(v, "/") || isAbsolute(v) {
		return v
	}
	return QuestionBucket + v
}

// OptionFallbackRef returns the reference for an option's raw image name
// when the option carries no explicit image URL.
func OptionFallbackRef(v string) string {
	if v == "" || strings.HasPrefix(v, "/") || isAbsolute(v) {
		return v
	}
	return OptionBucket + v
}

// Filename returns the local filename for a reference: the basename of its
// URL path, without query or fragment. It returns "" when there is none.
func Filename(rawRef string) string {
	p := rawRef
	if u, err := url.Parse(rawRef); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" || name == "" {
		return ""
	}
	return name
}

// CDNURL returns the public URL of an image on the CDN host, following the
// platform's bucket layout: bucket-qualified paths keep their bucket, bare
// names go to the question or option bucket, and an "app/" prefix is
// dropped. Absolute references are returned unchanged.
func CDNURL(cdnBase, rawRef string, option bool) string {
	if rawRef == "" || isAbsolute(rawRef) {
		return rawRef
	}
	base := strings.TrimRight(cdnBase, "/")
	p := strings.TrimLeft(rawRef, "/")
	switch {
	case strings.HasPrefix(p, "question_images"), strings.HasPrefix(p, "option_images"):
		return base + "/" + p
	case !strings.Contains(p, "/"):
		if option {
			return base + "/option_images/" + p
		}
		return base + "/question_images/" + p
	case strings.HasPrefix(p, "app/"):
		return base + "/" + strings.TrimPrefix(p, "app/")
	default:
		return base + "/" + p
	}
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
