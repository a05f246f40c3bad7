package eviscape

import (
	"fmt"
	"time"
)

// Member is a user account.
type Member struct {
	ID       int64
	Name     string
	FullName string
	PenName  string

	// PrimaryNode carries only the ID of the member's primary node.
	PrimaryNode *Node
}

func (m *Member) String() string {
	return fmt.Sprintf("member %d (%s)", m.ID, m.Name)
}

// Node is a profile or evisite.
type Node struct {
	ID            int64
	Name          string
	Member        *Member // owner, ID only
	Permalink     string  // absolute, "" when the node has none
	Strict        string
	LogoImage     string // absolute, "" when the node has no logo
	Description   string
	ListenerCount int
}

func (n *Node) String() string {
	return fmt.Sprintf("node %d (%s)", n.ID, n.Name)
}

// Evis is a post published on a node.
//
// Compact listings (search, received, latest) leave Body and Type empty.
type Evis struct {
	ID           int64
	Node         *Node
	Member       *Member
	Subject      string
	Body         string
	Type         string
	CommentCount int
	InsertDate   time.Time
	Permalink    string
}

func (e *Evis) String() string {
	return fmt.Sprintf("evis %d (%s)", e.ID, e.Permalink)
}

// File is an attachment of an evis.
type File struct {
	ID        int64
	Title     string
	Permalink string // absolute
}

func (f *File) String() string {
	return fmt.Sprintf("file %d (%s)", f.ID, f.Permalink)
}

// Comment is a reply to an evis.
type Comment struct {
	ID         int64
	Node       *Node // ID only
	Body       string
	PenName    string
	InsertDate time.Time
}

func (c *Comment) String() string {
	return fmt.Sprintf("comment %d", c.ID)
}
