package edgekv

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
)

// ResponseInfo carries a single coded message from a response envelope.
type ResponseInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is the envelope common to every EdgeKV endpoint. Operations
// return it exactly as received: the SDK never inspects the success flag
// and never promotes envelope errors to Go errors.
type Response struct {
	Success  bool           `json:"success"`
	Errors   []ResponseInfo `json:"errors"`
	Messages []ResponseInfo `json:"messages"`
}

// Err aggregates the envelope's errors into a single Go error, or nil
// when the envelope reports success. Calling it is the caller's choice.
func (r Response) Err() error {
	if r.Success || len(r.Errors) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, e := range r.Errors {
		merr = multierror.Append(merr, fmt.Errorf("edgekv: api error %d: %s", e.Code, e.Message))
	}
	return merr.ErrorOrNil()
}

// KeyInfo describes one key returned by ListKeys.
type KeyInfo struct {
	Name string `json:"name"`
	// Expiration is the key's expiry as a Unix timestamp in seconds,
	// zero when the key does not expire.
	Expiration int64 `json:"expiration,omitempty"`
	// Metadata is the free-form mapping attached to the key.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DecodeMetadata decodes the key's metadata mapping into out, which
// should be a pointer to a struct or map.
func (k KeyInfo) DecodeMetadata(out any) error {
	if err := mapstructure.Decode(k.Metadata, out); err != nil {
		return fmt.Errorf("edgekv: decode metadata for %q: %w", k.Name, err)
	}
	return nil
}

// ListKeysInfo carries pagination state for a ListKeys page.
type ListKeysInfo struct {
	// Count is the number of keys in this page.
	Count int `json:"count"`
	// Cursor, when non-empty, resumes listing at the next page.
	Cursor string `json:"cursor"`
}

// ListKeysResult is the envelope returned by ListKeys.
type ListKeysResult struct {
	Response
	Result     []KeyInfo     `json:"result"`
	ResultInfo *ListKeysInfo `json:"result_info,omitempty"`
}

// SetResult is the envelope returned by Set.
type SetResult struct {
	Response
	Result json.RawMessage `json:"result"`
}

// DeleteResult is the envelope returned by Delete.
type DeleteResult struct {
	Response
	Result json.RawMessage `json:"result"`
}

// ListKeysOptions controls a single ListKeys page. The zero value lists
// the first page of the client's default namespace at the server-side
// default page size.
type ListKeysOptions struct {
	// NamespaceID overrides the client's default namespace.
	NamespaceID string
	// Limit caps the number of keys per page. The API accepts 10 to
	// 1000 and enforces the bounds itself; the client transmits the
	// value as-is.
	Limit int
	// Cursor resumes listing from a previous page's ResultInfo.Cursor.
	// The token is opaque.
	Cursor string
	// Prefix restricts the listing to keys starting with the value.
	Prefix string
}

// GetOptions controls Get.
type GetOptions struct {
	// NamespaceID overrides the client's default namespace.
	NamespaceID string
}

// SetOptions controls Set.
type SetOptions struct {
	// NamespaceID overrides the client's default namespace.
	NamespaceID string
	// Expiration sets an absolute expiry as a Unix timestamp in seconds.
	Expiration int64
	// ExpirationTTL sets a relative expiry. It accepts bare seconds
	// ("600") or a duration with a unit ("10m"); see ParseTTL for the
	// grammar. When both Expiration and ExpirationTTL are set, only the
	// TTL is transmitted.
	ExpirationTTL string
}

// DeleteOptions controls Delete.
type DeleteOptions struct {
	// NamespaceID overrides the client's default namespace.
	NamespaceID string
}
