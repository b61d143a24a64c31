package handler

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

const maxBodySize = 64 << 10

// requestError is a malformed or incomplete request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// fields holds top-level body values by name. JSON objects and form bodies
// are reduced to the same shape; JSON numbers keep their literal text.
type fields map[string]string

func readFields(w http.ResponseWriter, r *http.Request) (fields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodySize); err != nil {
			return nil, badRequest("invalid form body")
		}
		return formFields(r), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, badRequest("invalid form body")
		}
		return formFields(r), nil
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, badRequest("read body: %v", err)
		}
		return jsonFields(data)
	}
}

func formFields(r *http.Request) fields {
	f := fields{}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			f[k] = v[0]
		}
	}
	return f
}

func jsonFields(data []byte) (fields, error) {
	f := fields{}
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch d.Next() {
		case jx.String:
			v, err := d.Str()
			if err != nil {
				return err
			}
			f[key] = v
		case jx.Number:
			n, err := d.Num()
			if err != nil {
				return err
			}
			f[key] = n.String()
		case jx.Bool:
			v, err := d.Bool()
			if err != nil {
				return err
			}
			f[key] = strconv.FormatBool(v)
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, badRequest("invalid JSON body")
	}
	return f, nil
}

// str returns the trimmed value of name, or "" when absent.
func (f fields) str(name string) string {
	return strings.TrimSpace(f[name])
}

// integer returns name as an integer, or def when absent.
func (f fields) integer(name string, def int) (int, error) {
	v := f.str(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return n, nil
}

// id returns name as a required positive identifier.
func (f fields) id(name string) (int64, error) {
	v := f.str(name)
	if v == "" {
		return 0, badRequest("%s is required", name)
	}
	return parseID(name, v)
}

func pathID(r *http.Request, name string) (int64, error) {
	return parseID(name, chi.URLParam(r, name))
}

func parseID(name, v string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 1 {
		return 0, badRequest("invalid %s", name)
	}
	return n, nil
}
