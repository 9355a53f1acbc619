package domain

import (
	"strings"
	"time"
)

// Client is a tenant of the gateway. The API key is both the primary key of
// the record and the credential presented in the Apikeyid header.
type Client struct {
	APIKey    string    `json:"apikey"`
	CreatedAt time.Time `json:"created_at"`
}

// Image is the metadata record behind one stored blob. Records are never
// mutated in place; conversion creates a new record under the same UID.
type Image struct {
	UID       string    `json:"uid"`
	ClientID  string    `json:"clientid"`
	Filename  string    `json:"filename"`
	Extension string    `json:"extension"`
	Index     string    `json:"index"`
	Size      int64     `json:"size"`
	Derived   bool      `json:"derived"`
	CreatedAt time.Time `json:"created_at"`
}

// NewImage derives the extension and storage index from its inputs. The
// index is the sole addressing path into the object store and must not
// collide across clients, so it always starts with the client id.
func NewImage(uid, clientID, filename string) *Image {
	return &Image{
		UID:       uid,
		ClientID:  clientID,
		Filename:  filename,
		Extension: ExtensionOf(filename),
		Index:     clientID + "/" + uid + "/" + filename,
		CreatedAt: time.Now(),
	}
}

// ExtensionOf returns the lowercased filename extension without the dot,
// or "" when the filename has none.
func ExtensionOf(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// WithExtension returns the filename with its extension replaced.
func WithExtension(filename, ext string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return filename + "." + ext
	}
	return filename[:i+1] + ext
}

type RegisterResponse struct {
	APIKey string `json:"apikey"`
}

type UploadResponse struct {
	UID string `json:"uid"`
}

type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}
