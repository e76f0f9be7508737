package httputil

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// PostForm returns a trimmed form field. Passwords must use RawPostForm.
func PostForm(c *gin.Context, name string) string {
	return strings.TrimSpace(c.PostForm(name))
}

// RawPostForm returns a form field exactly as submitted
func RawPostForm(c *gin.Context, name string) string {
	return c.PostForm(name)
}

// WantsJSON reports whether the caller asked for JSON rather than a page,
// either through Accept or by posting JSON
func WantsJSON(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// IsLocalPath reports whether target is a same-site path safe to redirect to
func IsLocalPath(target string) bool {
	if !strings.HasPrefix(target, "/") {
		return false
	}
	// "//host" and "/\host" are treated as absolute by browsers
	return !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\")
}
