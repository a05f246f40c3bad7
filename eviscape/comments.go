package eviscape

import "context"

// Comments returns the comments of an evis.
func (c *Client) Comments(ctx context.Context, token *Token, nodeID, evisID int64, page Page) ([]*Comment, error) {
	objs, err := c.call(ctx, "comments.get", token, withParams(page, defaultPerPage,
		"nod_id", formID(nodeID), "evi_id", formID(evisID)))
	if err != nil {
		return nil, err
	}
	return objs.Comments, nil
}

// PostComment adds a comment to an evis on behalf of memberID.
func (c *Client) PostComment(ctx context.Context, token *Token, nodeID, evisID, memberID int64, body string) (*Comment, error) {
	objs, err := c.post(ctx, "comment.post", token, withParams(Page{}, defaultPerPage,
		"nod_id", formID(nodeID),
		"evi_id", formID(evisID),
		"mem_id", formID(memberID),
		"comment", body,
	))
	if err != nil {
		return nil, err
	}
	if len(objs.Comments) == 0 {
		return nil, ErrEmptyResponse
	}
	return objs.Comments[0], nil
}
