package eviscape

import "context"

// SearchMembers searches members by name.
func (c *Client) SearchMembers(ctx context.Context, q string, page Page) ([]*Member, error) {
	params := page.values(defaultPerPage)
	params.Set("q", q)
	objs, err := c.call(ctx, "members.search", nil, params)
	if err != nil {
		return nil, err
	}
	return objs.Members, nil
}

// MemberByToken returns the member that authorized token.
func (c *Client) MemberByToken(ctx context.Context, token *Token) (*Member, error) {
	if token == nil {
		return nil, ErrTokenRequired
	}
	objs, err := c.call(ctx, "member.token", token, Page{}.values(defaultPerPage))
	if err != nil {
		return nil, err
	}
	if len(objs.Members) == 0 {
		return nil, ErrEmptyResponse
	}
	return objs.Members[0], nil
}
