package commenttree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Luismorlan/feedsync/model"
	"github.com/pkg/errors"
)

/*

Tree is the two level view of a post's comments

Roots: root comments, newest first. A comment whose parent is missing from the
		list, or whose parent is itself a reply, is an orphan and shows up here
		too so it is never lost.
RepliesByRoot: replies of each root (parent == root id), oldest first. Every
		root has an entry, orphans always map to an empty list.

*/
type Tree struct {
	Roots         []*model.Comment
	RepliesByRoot map[string][]*model.Comment
}

// Build reconstructs the tree from the flat list the server returns. Input
// order does not matter, equal timestamps are ordered by id. When the same id
// appears more than once only the first occurrence is kept.
func Build(comments []*model.Comment) Tree {
	byId := make(map[string]*model.Comment, len(comments))
	unique := make([]*model.Comment, 0, len(comments))
	for _, c := range comments {
		if c == nil {
			continue
		}
		if _, ok := byId[c.Id]; ok {
			continue
		}
		byId[c.Id] = c
		unique = append(unique, c)
	}

	tree := Tree{
		Roots:         []*model.Comment{},
		RepliesByRoot: make(map[string][]*model.Comment),
	}
	for _, c := range unique {
		if parent, ok := byId[c.Parent()]; ok && !c.IsRoot() && parent.IsRoot() {
			continue
		}
		tree.Roots = append(tree.Roots, c)
		tree.RepliesByRoot[c.Id] = []*model.Comment{}
	}
	for _, c := range unique {
		if c.IsRoot() {
			continue
		}
		parent, ok := byId[c.Parent()]
		if !ok || !parent.IsRoot() {
			continue
		}
		tree.RepliesByRoot[parent.Id] = append(tree.RepliesByRoot[parent.Id], c)
	}

	sort.SliceStable(tree.Roots, func(i, j int) bool {
		a, b := tree.Roots[i], tree.Roots[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.Id < b.Id
	})
	for _, replies := range tree.RepliesByRoot {
		sort.SliceStable(replies, func(i, j int) bool {
			a, b := replies[i], replies[j]
			if a.CreatedAt != b.CreatedAt {
				return a.CreatedAt < b.CreatedAt
			}
			return a.Id < b.Id
		})
	}
	return tree
}

// Size is the number of comments in the tree.
func (t Tree) Size() int {
	size := 0
	for _, replies := range t.RepliesByRoot {
		size += len(replies)
	}
	return size + len(t.Roots)
}

// ReplyCount is the number shown on the "N Replies" toggle, taken from the
// parent's child list.
func ReplyCount(root *model.Comment) int {
	if root == nil {
		return 0
	}
	return len(root.Replies)
}

// Verify checks that every comment whose parent is present is listed exactly
// once in the parent's child list.
func Verify(comments []*model.Comment) error {
	byId := make(map[string]*model.Comment, len(comments))
	for _, c := range comments {
		byId[c.Id] = c
	}

	violations := []string{}
	for _, c := range comments {
		if c.IsRoot() {
			continue
		}
		parent, ok := byId[c.Parent()]
		if !ok {
			continue
		}
		listed := 0
		for _, id := range parent.Replies {
			if id == c.Id {
				listed++
			}
		}
		if listed != 1 {
			violations = append(violations, fmt.Sprintf("%s listed %d times by %s", c.Id, listed, parent.Id))
		}
	}
	if len(violations) > 0 {
		return errors.Errorf("inconsistent child lists: %s", strings.Join(violations, "; "))
	}
	return nil
}
