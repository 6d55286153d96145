package model

// Patch is a reversible edit of a single cache entry. Field patches leave nil
// fields untouched, so an empty list is set with a non-nil empty slice.
type Patch interface {
	// Apply returns the next value of the entry. current is nil when the entry
	// is absent and a nil result removes the entry. Apply may modify current.
	Apply(current Entity) Entity

	// Inverse returns the patch restoring every field Apply touches to its
	// value in current.
	Inverse(current Entity) Patch
}

// Put replaces the whole entry.
type Put struct {
	Value Entity
}

// Remove deletes the entry.
type Remove struct{}

func (p Put) Apply(current Entity) Entity {
	if p.Value == nil {
		return nil
	}
	return p.Value.Clone()
}

func (p Put) Inverse(current Entity) Patch { return restoreOf(current) }

func (Remove) Apply(current Entity) Entity { return nil }

func (Remove) Inverse(current Entity) Patch { return restoreOf(current) }

func restoreOf(current Entity) Patch {
	if current == nil {
		return Remove{}
	}
	return Put{Value: current.Clone()}
}

type PostPatch struct {
	Caption        *string
	Visibility     *Visibility
	Tags           []string
	ReactionCounts ReactionCounts
	Reactions      []Reaction
	// ShareList also sets ShareCount so the two never disagree.
	ShareList    []string
	SaveList     []string
	CommentCount *int
}

func (pp PostPatch) Apply(current Entity) Entity {
	p, ok := current.(*Post)
	if !ok || p == nil {
		return current
	}
	if pp.Caption != nil {
		p.Caption = *pp.Caption
	}
	if pp.Visibility != nil {
		p.Visibility = *pp.Visibility
	}
	if pp.Tags != nil {
		p.Tags = cloneIds(pp.Tags)
	}
	if pp.ReactionCounts != nil {
		p.ReactionCounts = pp.ReactionCounts.clone()
	}
	if pp.Reactions != nil {
		p.Reactions = cloneReactions(pp.Reactions)
	}
	if pp.ShareList != nil {
		p.ShareList = cloneIds(pp.ShareList)
		p.ShareCount = len(p.ShareList)
	}
	if pp.SaveList != nil {
		p.SaveList = cloneIds(pp.SaveList)
	}
	if pp.CommentCount != nil {
		p.CommentCount = *pp.CommentCount
	}
	return p
}

func (pp PostPatch) Inverse(current Entity) Patch {
	p, ok := current.(*Post)
	if !ok || p == nil {
		return restoreOf(current)
	}
	inv := PostPatch{}
	if pp.Caption != nil {
		caption := p.Caption
		inv.Caption = &caption
	}
	if pp.Visibility != nil {
		visibility := p.Visibility
		inv.Visibility = &visibility
	}
	if pp.Tags != nil {
		inv.Tags = cloneIds(p.Tags)
	}
	if pp.ReactionCounts != nil {
		inv.ReactionCounts = p.ReactionCounts.clone()
	}
	if pp.Reactions != nil {
		inv.Reactions = cloneReactions(p.Reactions)
	}
	if pp.ShareList != nil {
		inv.ShareList = cloneIds(p.ShareList)
	}
	if pp.SaveList != nil {
		inv.SaveList = cloneIds(p.SaveList)
	}
	if pp.CommentCount != nil {
		count := p.CommentCount
		inv.CommentCount = &count
	}
	return inv
}

type CommentPatch struct {
	Content   *string
	Reactions []Reaction
	Replies   []string
}

func (cp CommentPatch) Apply(current Entity) Entity {
	c, ok := current.(*Comment)
	if !ok || c == nil {
		return current
	}
	if cp.Content != nil {
		c.Content = *cp.Content
	}
	if cp.Reactions != nil {
		c.Reactions = cloneReactions(cp.Reactions)
	}
	if cp.Replies != nil {
		c.Replies = cloneIds(cp.Replies)
	}
	return c
}

func (cp CommentPatch) Inverse(current Entity) Patch {
	c, ok := current.(*Comment)
	if !ok || c == nil {
		return restoreOf(current)
	}
	inv := CommentPatch{}
	if cp.Content != nil {
		content := c.Content
		inv.Content = &content
	}
	if cp.Reactions != nil {
		inv.Reactions = cloneReactions(c.Reactions)
	}
	if cp.Replies != nil {
		inv.Replies = cloneIds(c.Replies)
	}
	return inv
}

// AppendReply adds a child id to the parent's reply list, once.
type AppendReply struct {
	Id string
}

// RemoveReply drops a child id from the parent's reply list.
type RemoveReply struct {
	Id string
}

// ReplaceReply swaps a temporary child id for the server assigned one.
type ReplaceReply struct {
	Old string
	New string
}

func (a AppendReply) Apply(current Entity) Entity {
	return editReplies(current, func(ids []string) []string {
		if containsId(ids, a.Id) {
			return ids
		}
		return append(ids, a.Id)
	})
}

func (r RemoveReply) Apply(current Entity) Entity {
	return editReplies(current, func(ids []string) []string {
		return withoutId(ids, r.Id)
	})
}

func (r ReplaceReply) Apply(current Entity) Entity {
	return editReplies(current, func(ids []string) []string {
		res := []string{}
		for _, id := range ids {
			if id == r.Old {
				id = r.New
			}
			if !containsId(res, id) {
				res = append(res, id)
			}
		}
		return res
	})
}

func (AppendReply) Inverse(current Entity) Patch  { return repliesRestore(current) }
func (RemoveReply) Inverse(current Entity) Patch  { return repliesRestore(current) }
func (ReplaceReply) Inverse(current Entity) Patch { return repliesRestore(current) }

func editReplies(current Entity, edit func([]string) []string) Entity {
	c, ok := current.(*Comment)
	if !ok || c == nil {
		return current
	}
	c.Replies = edit(cloneIds(c.Replies))
	return c
}

func repliesRestore(current Entity) Patch {
	c, ok := current.(*Comment)
	if !ok || c == nil {
		return restoreOf(current)
	}
	return CommentPatch{Replies: cloneIds(c.Replies)}
}

type UserPatch struct {
	Name *string
	Bio  *string
	Role *Role
}

func (up UserPatch) Apply(current Entity) Entity {
	u, ok := current.(*User)
	if !ok || u == nil {
		return current
	}
	if up.Name != nil {
		u.Name = *up.Name
	}
	if up.Bio != nil {
		u.Bio = *up.Bio
	}
	if up.Role != nil {
		u.Role = *up.Role
	}
	return u
}

func (up UserPatch) Inverse(current Entity) Patch {
	u, ok := current.(*User)
	if !ok || u == nil {
		return restoreOf(current)
	}
	inv := UserPatch{}
	if up.Name != nil {
		name := u.Name
		inv.Name = &name
	}
	if up.Bio != nil {
		bio := u.Bio
		inv.Bio = &bio
	}
	if up.Role != nil {
		role := u.Role
		inv.Role = &role
	}
	return inv
}

// cloneIds never returns nil so the result is always a "set" patch field.
func cloneIds(ids []string) []string {
	res := make([]string, len(ids))
	copy(res, ids)
	return res
}

func cloneReactions(reactions []Reaction) []Reaction {
	res := make([]Reaction, len(reactions))
	copy(res, reactions)
	return res
}
