package config

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"

	"github.com/ksyq12/omero-certificates/internal/errors"
	"github.com/ksyq12/omero-certificates/internal/logger"
	"github.com/ksyq12/omero-certificates/internal/platform"
)

const (
	activeSection  = "__ACTIVE__"
	profileKey     = "omero.config.profile"
	defaultProfile = "default"
)

// xmlDocument mirrors the IceGrid properties layout of config.xml:
//
//	<icegrid>
//	  <properties id="__ACTIVE__">
//	    <property name="omero.config.profile" value="default"/>
//	  </properties>
//	  <properties id="default">
//	    <property name="omero.config.version" value="5.1.0"/>
//	  </properties>
//	</icegrid>
type xmlDocument struct {
	XMLName    xml.Name        `xml:"icegrid"`
	Properties []xmlProperties `xml:"properties"`
	Other      []xmlNode       `xml:",any"`
}

type xmlProperties struct {
	ID       string        `xml:"id,attr"`
	Property []xmlProperty `xml:"property"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// xmlNode preserves elements this store does not interpret.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

// XMLStore is a Store backed by an OMERO.server config.xml file. Every Set
// rewrites the file.
type XMLStore struct {
	path   string
	doc    xmlDocument
	closed bool
}

// OpenXMLStore opens the config store at path, creating it with the
// current schema version when it does not exist. The parent directory
// must already exist.
func OpenXMLStore(path string) (*XMLStore, error) {
	s := &XMLStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.Debug("Creating config store %s", path)
		s.doc = xmlDocument{Properties: []xmlProperties{
			{ID: activeSection, Property: []xmlProperty{{Name: profileKey, Value: defaultProfile}}},
			{ID: defaultProfile, Property: []xmlProperty{{Name: KeyConfigVersion, Value: CurrentSchema}}},
		}}
		if err := s.save(); err != nil {
			return nil, errors.Config("", "failed to create config store "+path, err)
		}
		return s, nil
	case err != nil:
		return nil, errors.Config("", "failed to read config store "+path, err)
	}

	if err := xml.Unmarshal(data, &s.doc); err != nil {
		return nil, errors.Config("", "failed to parse config store "+path, err)
	}
	logger.Debug("Loaded config store %s (profile %s, schema %s)", path, s.profile(), s.Version())
	return s, nil
}

// Path returns the file backing the store.
func (s *XMLStore) Path() string {
	return s.path
}

// profile returns the name of the active profile.
func (s *XMLStore) profile() string {
	if active := s.section(activeSection, false); active != nil {
		for _, p := range active.Property {
			if p.Name == profileKey && p.Value != "" {
				return p.Value
			}
		}
	}
	return defaultProfile
}

// section returns the properties block with id, optionally creating it.
func (s *XMLStore) section(id string, create bool) *xmlProperties {
	for i := range s.doc.Properties {
		if s.doc.Properties[i].ID == id {
			return &s.doc.Properties[i]
		}
	}
	if !create {
		return nil
	}
	s.doc.Properties = append(s.doc.Properties, xmlProperties{ID: id})
	return &s.doc.Properties[len(s.doc.Properties)-1]
}

// Get implements Store.
func (s *XMLStore) Get(key string) (string, bool, error) {
	if s.closed {
		return "", false, errClosed
	}
	sec := s.section(s.profile(), false)
	if sec == nil {
		return "", false, nil
	}
	for _, p := range sec.Property {
		if p.Name == key {
			return p.Value, true, nil
		}
	}
	return "", false, nil
}

// Set implements Store.
func (s *XMLStore) Set(key, value string) error {
	if s.closed {
		return errClosed
	}
	sec := s.section(s.profile(), true)
	found := false
	for i := range sec.Property {
		if sec.Property[i].Name == key {
			sec.Property[i].Value = value
			found = true
			break
		}
	}
	if !found {
		sec.Property = append(sec.Property, xmlProperty{Name: key, Value: value})
	}
	return s.save()
}

// AsMap implements Store.
func (s *XMLStore) AsMap() (map[string]string, error) {
	if s.closed {
		return nil, errClosed
	}
	out := make(map[string]string)
	if sec := s.section(s.profile(), false); sec != nil {
		for _, p := range sec.Property {
			out[p.Name] = p.Value
		}
	}
	return out, nil
}

// Version implements Store.
func (s *XMLStore) Version() string {
	v, _, _ := s.Get(KeyConfigVersion)
	return v
}

// Close implements Store.
func (s *XMLStore) Close() error {
	s.closed = true
	return nil
}

// save encodes the document and replaces the file atomically.
func (s *XMLStore) save() error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(&s.doc); err != nil {
		return fmt.Errorf("failed to encode config store: %w", err)
	}
	buf.WriteString("\n")

	if err := platform.WriteFileAtomic(s.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config store: %w", err)
	}
	return nil
}
