package manifest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Mallon94/mobile-air/pkg/plugins"
	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

const (
	attrName     = "android:name"
	attrExported = "android:exported"
	androidSpace = "android:"
)

// MergeStats counts the changes a single merge made
type MergeStats struct {
	PermissionsAdded int
	ServicesAdded    int
	ServicesUpdated  int
}

// Merger merges plugin permissions and services into a manifest document
type Merger struct {
	log *logrus.Logger
}

// NewMerger creates a new manifest merger
func NewMerger(log *logrus.Logger) *Merger {
	if log == nil {
		log = logrus.New()
	}
	return &Merger{log: log}
}

// Merge patches doc in place with cfg. Merging the same configuration again
// changes nothing: permissions are matched by name, services by name and
// their meta-data by name.
func (m *Merger) Merge(doc *Document, cfg plugins.AndroidConfig) MergeStats {
	var stats MergeStats

	stats.PermissionsAdded = m.mergePermissions(doc, cfg.Permissions)

	if len(cfg.Services) > 0 {
		app := doc.application(true)
		for _, svc := range cfg.Services {
			el := doc.Service(svc.Name)
			if el == nil {
				el = app.CreateElement("service")
				el.CreateAttr(attrName, svc.Name)
				stats.ServicesAdded++
				m.log.WithField("service", svc.Name).Debug("Adding service")
			} else {
				stats.ServicesUpdated++
			}

			el.CreateAttr(attrExported, strconv.FormatBool(svc.Exported))
			rebuildServiceChildren(el, svc)
		}
	}

	return stats
}

// mergePermissions appends missing permissions after the last existing
// uses-permission element, keeping pre-existing entries in place.
func (m *Merger) mergePermissions(doc *Document, perms []string) int {
	root := doc.doc.Root()

	existing := make(map[string]bool)
	var last *etree.Element
	for _, el := range root.SelectElements("uses-permission") {
		existing[el.SelectAttrValue(attrName, "")] = true
		last = el
	}

	added := 0
	for _, perm := range perms {
		if existing[perm] {
			continue
		}

		el := etree.NewElement("uses-permission")
		el.CreateAttr(attrName, perm)

		switch app := root.SelectElement("application"); {
		case last != nil:
			root.InsertChildAt(last.Index()+1, el)
		case app != nil:
			root.InsertChildAt(app.Index(), el)
		default:
			root.AddChild(el)
		}

		existing[perm] = true
		last = el
		added++
		m.log.WithField("permission", perm).Debug("Adding permission")
	}

	return added
}

// rebuildServiceChildren orders a service's children as: declared
// intent-filters, hand-authored intent-filters, declared meta-data,
// hand-authored meta-data, then anything else. Duplicates are dropped.
// Whitespace is discarded so a childless service renders self-closing.
func rebuildServiceChildren(el *etree.Element, svc plugins.Service) {
	var existingFilters, existingMeta, others []*etree.Element
	var comments []etree.Token

	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Element:
			switch t.Tag {
			case "intent-filter":
				existingFilters = append(existingFilters, t)
			case "meta-data":
				existingMeta = append(existingMeta, t)
			default:
				others = append(others, t)
			}
		case *etree.Comment:
			comments = append(comments, t)
		}
	}

	var children []etree.Token

	seenFilters := make(map[string]bool)
	addFilter := func(f *etree.Element) {
		key := canonical(f)
		if seenFilters[key] {
			return
		}
		seenFilters[key] = true
		children = append(children, f)
	}
	for _, filter := range svc.IntentFilters {
		addFilter(renderIntentFilter(filter))
	}
	for _, f := range existingFilters {
		addFilter(f)
	}

	seenMeta := make(map[string]bool)
	addMeta := func(md *etree.Element) {
		name := md.SelectAttrValue(attrName, "")
		if seenMeta[name] {
			return
		}
		seenMeta[name] = true
		children = append(children, md)
	}
	for _, md := range svc.MetaData {
		addMeta(renderMetaData(md))
	}
	for _, md := range existingMeta {
		addMeta(md)
	}

	for _, o := range others {
		children = append(children, o)
	}
	children = append(children, comments...)

	for _, tok := range append([]etree.Token(nil), el.Child...) {
		el.RemoveChild(tok)
	}
	for _, tok := range children {
		el.AddChild(tok)
	}
}

// renderMetaData renders the name plus exactly one of resource or value
func renderMetaData(md plugins.MetaData) *etree.Element {
	el := etree.NewElement("meta-data")
	el.CreateAttr(attrName, md.Name)
	if key, value, ok := md.Attribute(); ok {
		el.CreateAttr(androidSpace+key, value)
	}
	return el
}

// renderIntentFilter turns the pass-through filter description into an
// <intent-filter> element. Keys are emitted in lexical order.
func renderIntentFilter(filter plugins.IntentFilter) *etree.Element {
	el := etree.NewElement("intent-filter")

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.HasPrefix(k, androidSpace) {
			el.CreateAttr(k, scalarString(filter[k]))
		}
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, androidSpace) {
			appendIntentChildren(el, k, filter[k])
		}
	}

	return el
}

func appendIntentChildren(parent *etree.Element, tag string, value interface{}) {
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			appendIntentChildren(parent, tag, item)
		}
	case plugins.IntentFilter:
		// yaml.v3 decodes nested mappings as the enclosing map type
		appendIntentChildren(parent, tag, map[string]interface{}(v))
	case map[string]interface{}:
		child := parent.CreateElement(tag)
		for _, k := range sortedKeys(v) {
			child.CreateAttr(attrKey(k), scalarString(v[k]))
		}
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(v))
		for k, val := range v {
			converted[fmt.Sprint(k)] = val
		}
		appendIntentChildren(parent, tag, converted)
	default:
		child := parent.CreateElement(tag)
		child.CreateAttr(attrName, scalarString(v))
	}
}

func attrKey(k string) string {
	if strings.Contains(k, ":") {
		return k
	}
	return androidSpace + k
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// canonical renders an element's structure ignoring whitespace and attribute
// order, for duplicate detection.
func canonical(el *etree.Element) string {
	var b strings.Builder
	writeCanonical(&b, el)
	return b.String()
}

func writeCanonical(b *strings.Builder, el *etree.Element) {
	attrs := make([]string, 0, len(el.Attr))
	for _, a := range el.Attr {
		attrs = append(attrs, a.FullKey()+"="+strconv.Quote(a.Value))
	}
	sort.Strings(attrs)

	b.WriteString("<" + el.FullTag())
	for _, a := range attrs {
		b.WriteString(" " + a)
	}
	b.WriteString(">")

	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Element:
			writeCanonical(b, t)
		case *etree.CharData:
			if text := strings.TrimSpace(t.Data); text != "" {
				b.WriteString(strconv.Quote(text))
			}
		}
	}
	b.WriteString("</" + el.FullTag() + ">")
}
