package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrMissingField is returned when a required request field is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidFileName is returned when an image file name is not a single path segment.
	ErrInvalidFileName = errors.New("invalid image file name")
)

// Flag is a boolean-like request value with loose truthiness: false, null,
// 0 and "" are false, every other value (including the string "false" and
// objects) is true. Form values are false only when empty.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(t)
	case float64:
		*f = t != 0
	case string:
		*f = parseFlag(t)
	default:
		*f = true
	}
	return nil
}

// UnmarshalParam implements echo.BindUnmarshaler for form and query binding.
func (f *Flag) UnmarshalParam(param string) error {
	*f = parseFlag(param)
	return nil
}

// FormValue returns the upstream encoding of the flag: "1" or "0".
func (f Flag) FormValue() string {
	if f {
		return "1"
	}
	return "0"
}

func parseFlag(s string) Flag {
	return s != ""
}

// TicketRequest is the body of POST /api/login.
type TicketRequest struct {
	Account     string `json:"account" form:"account"`
	Password    string `json:"password" form:"password"`
	NoFriends   Flag   `json:"no_friends" form:"no_friends"`
	NoBookmarks Flag   `json:"no_bookmarks" form:"no_bookmarks"`
}

// Validate checks that the credentials are present.
func (r *TicketRequest) Validate() error {
	return requireFields(
		field{"account", r.Account},
		field{"password", r.Password},
	)
}

// Form returns the form-encoded payload for the ticket endpoint.
func (r *TicketRequest) Form() url.Values {
	return url.Values{
		"account":      {r.Account},
		"password":     {r.Password},
		"no_friends":   {r.NoFriends.FormValue()},
		"no_bookmarks": {r.NoBookmarks.FormValue()},
	}
}

// CharacterDataRequest is the body of POST /api/character-data.
type CharacterDataRequest struct {
	Account string `json:"account" form:"account"`
	Ticket  string `json:"ticket" form:"ticket"`
	Name    string `json:"name" form:"name"`
}

// Validate checks that account, ticket and name are present.
func (r *CharacterDataRequest) Validate() error {
	return requireFields(
		field{"account", r.Account},
		field{"ticket", r.Ticket},
		field{"name", r.Name},
	)
}

// Form returns the form-encoded payload for the character-data endpoint.
func (r *CharacterDataRequest) Form() url.Values {
	return url.Values{
		"account": {r.Account},
		"ticket":  {r.Ticket},
		"name":    {r.Name},
	}
}

// ImageRequest identifies a character image by file name, e.g. "12345.png".
type ImageRequest struct {
	File string
}

// Validate rejects empty names and anything that could escape the image
// directory on the upstream host.
func (r *ImageRequest) Validate() error {
	if r.File == "" {
		return fmt.Errorf("%w: imageFile", ErrMissingField)
	}
	if r.File == "." || r.File == ".." || strings.ContainsAny(r.File, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, r.File)
	}
	for _, c := range r.File {
		if c < 0x20 || c == 0x7f {
			return fmt.Errorf("%w: control character", ErrInvalidFileName)
		}
	}
	return nil
}

// PathSegment returns the file name escaped for use as a URL path segment.
func (r *ImageRequest) PathSegment() string {
	return url.PathEscape(r.File)
}

type field struct {
	name, value string
}

func requireFields(fields ...field) error {
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	return nil
}
