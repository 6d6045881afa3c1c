package services

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*
var templateFS embed.FS

// renderedEmail is the output of one template set.
type renderedEmail struct {
	Subject string
	Text    string
	HTML    string
}

// templateRenderer renders the embedded <name>_subject.txt, <name>.txt and
// optional <name>.html files.
type templateRenderer struct {
	fs fs.FS
}

func newTemplateRenderer() *templateRenderer {
	return &templateRenderer{fs: templateFS}
}

func (r *templateRenderer) Render(name string, data any) (renderedEmail, error) {
	subject, err := r.renderFile(name+"_subject.txt", data, false)
	if err != nil {
		return renderedEmail{}, fmt.Errorf("render subject: %w", err)
	}
	text, err := r.renderFile(name+".txt", data, false)
	if err != nil {
		return renderedEmail{}, fmt.Errorf("render text: %w", err)
	}
	html, err := r.renderFile(name+".html", data, true)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return renderedEmail{}, fmt.Errorf("render html: %w", err)
	}
	return renderedEmail{
		Subject: strings.Join(strings.Fields(subject), " "),
		Text:    text,
		HTML:    html,
	}, nil
}

func (r *templateRenderer) renderFile(name string, data any, html bool) (string, error) {
	raw, err := fs.ReadFile(r.fs, "templates/"+name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if html {
		t, err := template.New(name).Parse(string(raw))
		if err != nil {
			return "", err
		}
		if err := t.Execute(&buf, data); err != nil {
			return "", err
		}
	} else {
		t, err := texttemplate.New(name).Parse(string(raw))
		if err != nil {
			return "", err
		}
		if err := t.Execute(&buf, data); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
