package eviscape

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// objects holds the decoded content of a response envelope. Only the
// slice matching the called method is filled.
type objects struct {
	Members  []*Member
	Nodes    []*Node
	Evis     []*Evis
	Files    []*File
	Comments []*Comment
}

// decoder turns response bodies into models. Relative links are made
// absolute against server.
type decoder struct {
	server string
}

func (d decoder) decode(format string, data []byte) (*objects, error) {
	if format == FormatJSON {
		return d.decodeJSON(data)
	}
	return d.decodeXML(data)
}

// Both formats are mapped onto these before conversion.
type (
	rawMember struct {
		ID          string `xml:"id,attr"`
		Name        string `xml:"mem_name"`
		FullName    string `xml:"mem_full_name"`
		PenName     string `xml:"mem_pen_name"`
		PrimaryNode string `xml:"nod_id_primary"`
	}

	rawNode struct {
		ID            string `xml:"id,attr"`
		Ref           string `xml:"ref,attr"`
		Name          string `xml:"nod_name"`
		Strict        string `xml:"nod_strict"`
		Logo          string `xml:"nod_logo_image"`
		Description   string `xml:"nod_desc"`
		ListenerCount string `xml:"nod_listener_count"`
		MemberID      string `xml:"mem_id"`
	}

	rawEvis struct {
		ID           string `xml:"id,attr"`
		Ref          string `xml:"ref,attr"`
		MemberID     string `xml:"mem_id"`
		MemberName   string `xml:"mem_name"`
		NodeID       string `xml:"nod_id"`
		NodeName     string `xml:"nod_name"`
		Subject      string `xml:"evi_subject"`
		Body         string `xml:"evi_body"`
		Type         string `xml:"type"`
		CommentCount string `xml:"evi_comment_count"`
		InsertDate   string `xml:"evi_insert_date"`
	}

	rawFile struct {
		ID    string `xml:"id,attr"`
		Ref   string `xml:"ref,attr"`
		Title string `xml:"fle_title"`
	}

	rawComment struct {
		ID         string `xml:"id,attr"`
		NodeID     string `xml:"nod_id"`
		Body       string `xml:"ecm_comment"`
		PenName    string `xml:"mem_pen_name"`
		InsertDate string `xml:"ecm_insert_date"`
	}
)

type xmlResponse struct {
	XMLName xml.Name `xml:"rsp"`
	Stat    string   `xml:"stat,attr"`
	Err     struct {
		Code string `xml:"code,attr"`
		Msg  string `xml:"msg,attr"`
	} `xml:"err"`
	Objects struct {
		Members  []rawMember  `xml:"members"`
		Nodes    []rawNode    `xml:"node"`
		Evis     []rawEvis    `xml:"evis"`
		Files    []rawFile    `xml:"files"`
		Comments []rawComment `xml:"comment"`
	} `xml:"objects"`
}

func (d decoder) decodeXML(data []byte) (*objects, error) {
	var rsp xmlResponse
	if err := xml.Unmarshal(data, &rsp); err != nil {
		return nil, fmt.Errorf("eviscape: parse xml response: %w", err)
	}
	if rsp.Stat != "ok" {
		return nil, &APIError{Code: rsp.Err.Code, Message: rsp.Err.Msg}
	}

	out := &objects{}
	for _, r := range rsp.Objects.Members {
		m, err := d.member(r)
		if err != nil {
			return nil, err
		}
		out.Members = append(out.Members, m)
	}
	for _, r := range rsp.Objects.Nodes {
		n, err := d.node(r)
		if err != nil {
			return nil, err
		}
		out.Nodes = append(out.Nodes, n)
	}
	for _, r := range rsp.Objects.Evis {
		e, err := d.evis(r)
		if err != nil {
			return nil, err
		}
		out.Evis = append(out.Evis, e)
	}
	for _, r := range rsp.Objects.Files {
		f, err := d.file(r)
		if err != nil {
			return nil, err
		}
		out.Files = append(out.Files, f)
	}
	for _, r := range rsp.Objects.Comments {
		c, err := d.comment(r)
		if err != nil {
			return nil, err
		}
		out.Comments = append(out.Comments, c)
	}
	return out, nil
}

// text accepts a JSON string, number or boolean.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(s)
		return nil
	}
	*t = text(strings.TrimSpace(string(b)))
	return nil
}

type jsonResponse struct {
	Stat    string          `json:"stat"`
	Code    text            `json:"code"`
	Msg     string          `json:"msg"`
	Objects json.RawMessage `json:"objects"`
}

// jsonObject is one element of "objects". The key holding the payload
// tells its kind; files come under "nodes".
type jsonObject struct {
	ID  text   `json:"id"`
	Ref string `json:"ref"`

	Member *struct {
		Name        string `json:"mem_name"`
		FullName    string `json:"mem_full_name"`
		PenName     string `json:"mem_pen_name"`
		PrimaryNode text   `json:"nod_id_primary"`
	} `json:"member"`

	Node *struct {
		Name          string `json:"nod_name"`
		Strict        text   `json:"nod_strict"`
		Logo          string `json:"nod_logo_image"`
		Description   string `json:"nod_desc"`
		ListenerCount text   `json:"nod_listener_count"`
		MemberID      text   `json:"mem_id"`
	} `json:"node"`

	Evis *struct {
		MemberID     text   `json:"mem_id"`
		MemberName   string `json:"mem_name"`
		NodeID       text   `json:"nod_id"`
		NodeName     string `json:"nod_name"`
		Subject      string `json:"evi_subject"`
		Body         string `json:"evi_body"`
		Type         string `json:"typ_value"`
		CommentCount text   `json:"evi_comment_count"`
		InsertDate   string `json:"evi_insert_date"`
	} `json:"evis"`

	File *struct {
		Title string `json:"fle_title"`
	} `json:"nodes"`

	Comment *struct {
		NodeID     text   `json:"nod_id"`
		Body       string `json:"ecm_comment"`
		PenName    string `json:"mem_pen_name"`
		InsertDate string `json:"ecm_insert_date"`
	} `json:"comment"`
}

func (d decoder) decodeJSON(data []byte) (*objects, error) {
	var rsp jsonResponse
	if err := json.Unmarshal(data, &rsp); err != nil {
		return nil, fmt.Errorf("eviscape: parse json response: %w", err)
	}
	if rsp.Stat != "ok" {
		return nil, &APIError{Code: string(rsp.Code), Message: rsp.Msg}
	}

	out := &objects{}
	list := bytes.TrimSpace(rsp.Objects)
	if len(list) == 0 || list[0] != '[' {
		return out, nil
	}
	var objs []jsonObject
	if err := json.Unmarshal(list, &objs); err != nil {
		return nil, fmt.Errorf("eviscape: parse json objects: %w", err)
	}

	for _, o := range objs {
		if err := d.appendJSON(out, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d decoder) appendJSON(out *objects, o jsonObject) error {
	id := string(o.ID)
	switch {
	case o.Member != nil:
		m, err := d.member(rawMember{
			ID:          id,
			Name:        o.Member.Name,
			FullName:    o.Member.FullName,
			PenName:     o.Member.PenName,
			PrimaryNode: string(o.Member.PrimaryNode),
		})
		if err != nil {
			return err
		}
		out.Members = append(out.Members, m)
	case o.Node != nil:
		n, err := d.node(rawNode{
			ID:            id,
			Ref:           o.Ref,
			Name:          o.Node.Name,
			Strict:        string(o.Node.Strict),
			Logo:          o.Node.Logo,
			Description:   o.Node.Description,
			ListenerCount: string(o.Node.ListenerCount),
			MemberID:      string(o.Node.MemberID),
		})
		if err != nil {
			return err
		}
		out.Nodes = append(out.Nodes, n)
	case o.Evis != nil:
		e, err := d.evis(rawEvis{
			ID:           id,
			Ref:          o.Ref,
			MemberID:     string(o.Evis.MemberID),
			MemberName:   o.Evis.MemberName,
			NodeID:       string(o.Evis.NodeID),
			NodeName:     o.Evis.NodeName,
			Subject:      o.Evis.Subject,
			Body:         o.Evis.Body,
			Type:         o.Evis.Type,
			CommentCount: string(o.Evis.CommentCount),
			InsertDate:   o.Evis.InsertDate,
		})
		if err != nil {
			return err
		}
		out.Evis = append(out.Evis, e)
	case o.File != nil:
		f, err := d.file(rawFile{ID: id, Ref: o.Ref, Title: o.File.Title})
		if err != nil {
			return err
		}
		out.Files = append(out.Files, f)
	case o.Comment != nil:
		c, err := d.comment(rawComment{
			ID:         id,
			NodeID:     string(o.Comment.NodeID),
			Body:       o.Comment.Body,
			PenName:    o.Comment.PenName,
			InsertDate: o.Comment.InsertDate,
		})
		if err != nil {
			return err
		}
		out.Comments = append(out.Comments, c)
	}
	return nil
}

func (d decoder) member(r rawMember) (*Member, error) {
	id, err := parseID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode member: %w", err)
	}
	m := &Member{ID: id, Name: r.Name, FullName: r.FullName, PenName: r.PenName}
	if r.PrimaryNode != "" {
		nid, err := parseID(r.PrimaryNode)
		if err != nil {
			return nil, fmt.Errorf("eviscape: decode member %d: primary node: %w", id, err)
		}
		m.PrimaryNode = &Node{ID: nid}
	}
	return m, nil
}

func (d decoder) node(r rawNode) (*Node, error) {
	id, err := parseID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode node: %w", err)
	}
	count, err := parseID(r.ListenerCount)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode node %d: listener count: %w", id, err)
	}
	n := &Node{
		ID:            id,
		Name:          r.Name,
		Permalink:     d.absolute(r.Ref),
		Strict:        r.Strict,
		LogoImage:     d.logo(r.Logo),
		Description:   r.Description,
		ListenerCount: int(count),
	}
	if r.MemberID != "" {
		mid, err := parseID(r.MemberID)
		if err != nil {
			return nil, fmt.Errorf("eviscape: decode node %d: member: %w", id, err)
		}
		n.Member = &Member{ID: mid}
	}
	return n, nil
}

func (d decoder) evis(r rawEvis) (*Evis, error) {
	id, err := parseID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode evis: %w", err)
	}
	mid, err := parseID(r.MemberID)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode evis %d: member: %w", id, err)
	}
	nid, err := parseID(r.NodeID)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode evis %d: node: %w", id, err)
	}
	count, err := parseID(r.CommentCount)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode evis %d: comment count: %w", id, err)
	}
	date, err := parseDate(r.InsertDate)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode evis %d: %w", id, err)
	}

	member := &Member{ID: mid, Name: r.MemberName}
	return &Evis{
		ID:           id,
		Node:         &Node{ID: nid, Name: r.NodeName, Member: member},
		Member:       member,
		Subject:      r.Subject,
		Body:         r.Body,
		Type:         r.Type,
		CommentCount: int(count),
		InsertDate:   date,
		Permalink:    r.Ref,
	}, nil
}

func (d decoder) file(r rawFile) (*File, error) {
	id, err := parseID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode file: %w", err)
	}
	return &File{ID: id, Title: r.Title, Permalink: d.absolute(r.Ref)}, nil
}

func (d decoder) comment(r rawComment) (*Comment, error) {
	id, err := parseID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode comment: %w", err)
	}
	nid, err := parseID(r.NodeID)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode comment %d: node: %w", id, err)
	}
	date, err := parseDate(r.InsertDate)
	if err != nil {
		return nil, fmt.Errorf("eviscape: decode comment %d: %w", id, err)
	}
	return &Comment{
		ID:         id,
		Node:       &Node{ID: nid},
		Body:       r.Body,
		PenName:    r.PenName,
		InsertDate: date,
	}, nil
}

// absolute turns a server-relative link into an absolute one.
func (d decoder) absolute(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return "http://" + d.server + ref
}

func (d decoder) logo(name string) string {
	if name == "" || strings.HasPrefix(name, "http") {
		return name
	}
	return "http://" + d.server + "/static/" + strings.TrimPrefix(name, "/")
}

// parseID parses a numeric field. Missing fields decode as 0.
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
