package eviscape

import (
	"context"
	"net/url"
	"strings"
)

// sentPerPage is the default page size of SentEvis.
const sentPerPage = 100

// Evis returns a full evis.
func (c *Client) Evis(ctx context.Context, token *Token, nodeID, evisID int64) (*Evis, error) {
	list, err := c.evisList(ctx, "evis.get", token, withParams(Page{}, defaultPerPage,
		"evi_id", formID(evisID), "nod_id", formID(nodeID)))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrEmptyResponse
	}
	return list[0], nil
}

// EvisFiles returns the files attached to an evis.
func (c *Client) EvisFiles(ctx context.Context, token *Token, nodeID, evisID int64, page Page) ([]*File, error) {
	objs, err := c.call(ctx, "evis.get_files", token, withParams(page, defaultPerPage,
		"evi_id", formID(evisID), "nod_id", formID(nodeID)))
	if err != nil {
		return nil, err
	}
	return objs.Files, nil
}

// EvisPost is a new evis.
type EvisPost struct {
	Subject  string
	Body     string
	Type     string // e.g. "text"
	MemberID int64
	NodeID   int64
	Tags     []string
	Draft    bool
}

// PostEvis publishes an evis on behalf of the token's member.
func (c *Client) PostEvis(ctx context.Context, token *Token, post EvisPost) (*Evis, error) {
	params := withParams(Page{}, defaultPerPage,
		"evi_subject", post.Subject,
		"evi_body", post.Body,
		"evi_type", post.Type,
		"mem_id", formID(post.MemberID),
		"nod_id", formID(post.NodeID),
		"evi_tags", strings.Join(post.Tags, ","),
		"evis_is_draft", formBool(post.Draft),
	)
	objs, err := c.post(ctx, "evis.post", token, params)
	if err != nil {
		return nil, err
	}
	if len(objs.Evis) == 0 {
		return nil, ErrEmptyResponse
	}
	return objs.Evis[0], nil
}

// Timeline returns the timeline of a member on one of their nodes.
func (c *Client) Timeline(ctx context.Context, token *Token, memberID, nodeID int64, page Page) ([]*Evis, error) {
	if token == nil {
		return nil, ErrTokenRequired
	}
	return c.evisList(ctx, "evis.timeline", token, withParams(page, defaultPerPage,
		"mem_id", formID(memberID), "nod_id", formID(nodeID)))
}

// SearchEvis searches evis, e.g. "bon jovi OR metallica". Results are
// compact.
func (c *Client) SearchEvis(ctx context.Context, token *Token, q string, page Page) ([]*Evis, error) {
	return c.evisList(ctx, "evis.search", token, withParams(page, defaultPerPage, "q", q))
}

// SentEvis returns the evis posted by a node. Pages hold 100 evis unless
// page.PerPage says otherwise.
func (c *Client) SentEvis(ctx context.Context, token *Token, nodeID int64, page Page) ([]*Evis, error) {
	return c.evisList(ctx, "evis.sent", token, withParams(page, sentPerPage, "nod_id", formID(nodeID)))
}

// ReceivedEvis returns the evis received by a member's node. Results are
// compact.
func (c *Client) ReceivedEvis(ctx context.Context, token *Token, memberID, nodeID int64, page Page) ([]*Evis, error) {
	return c.evisList(ctx, "evis.received", token, withParams(page, defaultPerPage,
		"mem_id", formID(memberID), "nod_id", formID(nodeID)))
}

// LatestEvis returns the most recent evis. Results are compact.
func (c *Client) LatestEvis(ctx context.Context, token *Token, page Page) ([]*Evis, error) {
	return c.evisList(ctx, "evis.latest", token, page.values(defaultPerPage))
}

func (c *Client) evisList(ctx context.Context, method string, token *Token, params url.Values) ([]*Evis, error) {
	objs, err := c.call(ctx, method, token, params)
	if err != nil {
		return nil, err
	}
	return objs.Evis, nil
}
