package configxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/garnetlab/delaytool/topology"
)

// Defaults for optional virtual-link attributes.
const (
	DefaultSmin = 64  // bytes
	DefaultJit0 = 0.5 // ms (500 microseconds)
)

// ErrBadDocument indicates a structurally invalid afdxxml document.
var ErrBadDocument = errors.New("configxml: bad document")

// Document is the root afdxxml element.
type Document struct {
	XMLName      xml.Name     `xml:"afdxxml"`
	Resources    Resources    `xml:"resources"`
	VirtualLinks VirtualLinks `xml:"virtualLinks"`
}

// Resources declares the physical network.
type Resources struct {
	Links      []LinkElem   `xml:"link"`
	EndSystems []DeviceElem `xml:"endSystem"`
	Switches   []SwitchElem `xml:"switch"`
}

// LinkElem is one full-duplex link between two ports.
type LinkElem struct {
	Capacity float64 `xml:"capacity,attr"`
	From     int     `xml:"from,attr"`
	To       int     `xml:"to,attr"`
}

// DeviceElem is an end system: one port.
type DeviceElem struct {
	Number int    `xml:"number,attr"`
	Ports  string `xml:"ports,attr"`
}

// SwitchElem is a switch; the scheme attributes are written on output.
type SwitchElem struct {
	Number  int    `xml:"number,attr"`
	Ports   string `xml:"ports,attr"`
	Scheme  string `xml:"scheme,attr,omitempty"`
	Fabrics *int   `xml:"fabrics,attr,omitempty"`
}

// VirtualLinks wraps the virtual-link declarations.
type VirtualLinks struct {
	Items []VirtualLinkElem `xml:"virtualLink"`
}

// VirtualLinkElem declares one virtual link. Lmin and Jit0 are
// optional; see the package defaults.
type VirtualLinkElem struct {
	Number int        `xml:"number,attr"`
	Source *int       `xml:"src,attr"`
	Bag    int64      `xml:"bag,attr"`
	Lmax   int64      `xml:"lmax,attr"`
	Lmin   *int64     `xml:"lmin,attr"`
	Jit0   *float64   `xml:"jit0,attr"`
	Paths  []PathElem `xml:"path"`
}

// PathElem is one routed path; MaxDelay and MaxJit (microseconds) are
// written on output.
type PathElem struct {
	Dest     int    `xml:"dest,attr"`
	Path     string `xml:"path,attr"`
	MaxDelay *int64 `xml:"maxDelay,attr"`
	MaxJit   *int64 `xml:"maxJit,attr"`
}

// Decode parses an afdxxml document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	return &doc, nil
}

// Encode serialises the document with an XML header.
func Encode(w io.Writer, doc *Document) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Options carries the analysis parameters that come from outside the
// document.
type Options struct {
	Scheme        topology.Scheme
	Fabrics       int
	BpMaxIter     uint64
	CyclicMaxIter uint64
}

// Params converts the document into the topology builder's input.
// The network rate is the capacity of the first link; links with a
// different capacity are rejected by the builder.
func (d *Document) Params(o Options) (topology.Params, error) {
	if len(d.Resources.Links) == 0 {
		return topology.Params{}, fmt.Errorf("%w: no links declared", ErrBadDocument)
	}
	p := topology.Params{
		Rate:          d.Resources.Links[0].Capacity,
		Scheme:        o.Scheme,
		Fabrics:       o.Fabrics,
		BpMaxIter:     o.BpMaxIter,
		CyclicMaxIter: o.CyclicMaxIter,
	}
	for _, l := range d.Resources.Links {
		p.Links = append(p.Links, topology.Link{From: l.From, To: l.To, Capacity: l.Capacity})
	}
	for _, es := range d.Resources.EndSystems {
		ports, err := parseCSV(es.Ports)
		if err != nil {
			return topology.Params{}, fmt.Errorf("%w: end system %d ports: %v", ErrBadDocument, es.Number, err)
		}
		if len(ports) != 1 {
			return topology.Params{}, fmt.Errorf("%w: end system %d must have exactly one port", ErrBadDocument, es.Number)
		}
		p.Devices = append(p.Devices, topology.DeviceDecl{ID: es.Number, Type: topology.End, Ports: ports})
	}
	for _, sw := range d.Resources.Switches {
		ports, err := parseCSV(sw.Ports)
		if err != nil {
			return topology.Params{}, fmt.Errorf("%w: switch %d ports: %v", ErrBadDocument, sw.Number, err)
		}
		p.Devices = append(p.Devices, topology.DeviceDecl{ID: sw.Number, Type: topology.Switch, Ports: ports})
	}
	// Port->device and link maps for deriving absent source devices.
	portDev := make(map[int]int)
	for _, dev := range p.Devices {
		for _, port := range dev.Ports {
			portDev[port] = dev.ID
		}
	}
	peer := make(map[int]int, 2*len(p.Links))
	for _, l := range p.Links {
		peer[l.From] = l.To
		peer[l.To] = l.From
	}

	for _, vl := range d.VirtualLinks.Items {
		smin := int64(DefaultSmin)
		if vl.Lmin != nil {
			smin = *vl.Lmin
		}
		jit0 := DefaultJit0
		if vl.Jit0 != nil {
			jit0 = *vl.Jit0
		}
		decl := topology.VlinkDecl{
			ID:   vl.Number,
			Bag:  vl.Bag,
			Smax: vl.Lmax,
			Smin: smin,
			Jit0: jit0,
		}
		for _, path := range vl.Paths {
			ports, err := parseCSV(path.Path)
			if err != nil || len(ports) == 0 {
				return topology.Params{}, fmt.Errorf("%w: vl %d path to %d: %v", ErrBadDocument, vl.Number, path.Dest, err)
			}
			decl.Paths = append(decl.Paths, ports)
		}
		if len(decl.Paths) == 0 {
			return topology.Params{}, fmt.Errorf("%w: vl %d has no paths", ErrBadDocument, vl.Number)
		}
		if vl.Source != nil {
			decl.SrcID = *vl.Source
		} else {
			// The source end system sits across the link from the
			// first hop's ingress port.
			first := decl.Paths[0][0]
			srcPort, ok := peer[first]
			if !ok {
				return topology.Params{}, fmt.Errorf("%w: vl %d first port %d has no link", ErrBadDocument, vl.Number, first)
			}
			srcID, ok := portDev[srcPort]
			if !ok {
				return topology.Params{}, fmt.Errorf("%w: vl %d source port %d has no device", ErrBadDocument, vl.Number, srcPort)
			}
			decl.SrcID = srcID
		}
		p.Vlinks = append(p.Vlinks, decl)
	}
	return p, nil
}

// Apply writes the computed end-to-end triples and the per-switch
// scheme attributes back into the document. Every path must have a
// ready result on its destination leaf.
func Apply(doc *Document, cfg *topology.Config) error {
	for i := range doc.Resources.Switches {
		sw := &doc.Resources.Switches[i]
		sw.Scheme = cfg.Scheme.String()
		if cfg.Scheme == topology.CIOQ {
			fabrics := cfg.Fabrics
			sw.Fabrics = &fabrics
		}
	}
	for i := range doc.VirtualLinks.Items {
		vlEl := &doc.VirtualLinks.Items[i]
		vl := cfg.Vlink(vlEl.Number)
		if vl == nil {
			return fmt.Errorf("%w: vl %d not in configuration", ErrBadDocument, vlEl.Number)
		}
		for j := range vlEl.Paths {
			path := &vlEl.Paths[j]
			leaf := vl.Dst(path.Dest)
			if leaf == nil {
				return fmt.Errorf("%w: vl %d has no route to device %d", ErrBadDocument, vl.ID, path.Dest)
			}
			if !leaf.E2E.Ready() {
				return fmt.Errorf("%w: vl %d to device %d has no computed delay", ErrBadDocument, vl.ID, path.Dest)
			}
			maxDelay := cfg.LinkByteToUs(leaf.E2E.Dmax())
			maxJit := cfg.LinkByteToUs(leaf.E2E.Jit())
			path.MaxDelay = &maxDelay
			path.MaxJit = &maxJit
		}
	}
	return nil
}

// parseCSV tokenises a comma- or space-separated list of integers.
func parseCSV(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	res := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q", f)
		}
		res = append(res, n)
	}
	return res, nil
}
