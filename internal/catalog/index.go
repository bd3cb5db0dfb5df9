package catalog

import (
	"sort"
	"strings"

	"github.com/erazemk/dibs/internal/model"
)

// Status is one of the four by-status partitions. Claimed/available and
// private/public are independent axes, so every item sits in two of them.
type Status string

// Status partitions.
const (
	StatusClaimed   Status = "claimed"
	StatusAvailable Status = "available"
	StatusPrivate   Status = "private"
	StatusPublic    Status = "public"
)

// ParseStatus validates a status facet value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusClaimed, StatusAvailable, StatusPrivate, StatusPublic:
		return Status(s), nil
	}
	return "", &model.ValidationError{Field: "status", Message: "status must be claimed, available, private or public"}
}

type idSet map[string]struct{}

func (s idSet) add(id string)    { s[id] = struct{}{} }
func (s idSet) remove(id string) { delete(s, id) }
func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// index holds the derived lookup structures for one catalog. It is only
// touched with the catalog's lock held.
type index struct {
	seq   uint64
	order map[string]uint64

	byCollection map[string]idSet
	byCategory   map[string]idSet
	byStatus     map[Status]idSet
	byScore      map[int]idSet
	archived     idSet

	blob  map[string]string
	names map[string]string
}

func newIndex() *index {
	ix := &index{
		order:        make(map[string]uint64),
		byCollection: make(map[string]idSet),
		byCategory:   make(map[string]idSet),
		byStatus:     make(map[Status]idSet, 4),
		byScore:      make(map[int]idSet, model.MaxDesireScore),
		archived:     make(idSet),
		blob:         make(map[string]string),
		names:        make(map[string]string),
	}
	for _, s := range []Status{StatusClaimed, StatusAvailable, StatusPrivate, StatusPublic} {
		ix.byStatus[s] = make(idSet)
	}
	return ix
}

// rebuildIndex builds a fresh index from items. Items already known to
// prev keep their catalog positions; the rest are appended in the order
// given.
func rebuildIndex(prev *index, items []*model.WishItem) *index {
	ix := newIndex()
	if prev != nil {
		ix.seq = prev.seq
		sort.SliceStable(items, func(i, j int) bool {
			oi, iok := prev.order[items[i].ID]
			oj, jok := prev.order[items[j].ID]
			if iok != jok {
				return iok
			}
			return oi < oj
		})
	}
	for _, it := range items {
		if prev != nil {
			if o, ok := prev.order[it.ID]; ok {
				ix.order[it.ID] = o
			}
		}
		ix.insert(it)
	}
	return ix
}

func (ix *index) next() uint64 {
	ix.seq++
	return ix.seq
}

// insert adds a new item to every index.
func (ix *index) insert(it *model.WishItem) {
	if _, ok := ix.order[it.ID]; !ok {
		ix.order[it.ID] = ix.next()
	}
	for _, cid := range it.CollectionIDs {
		ix.addToCollection(cid, it.ID)
	}
	for _, tag := range it.CategoryTags {
		ix.addToCategory(tag, it.ID)
	}
	ix.indexStatus(it)
	ix.bucket(it.DesireScore).add(it.ID)
	if it.Archived() {
		ix.archived.add(it.ID)
	}
	ix.blob[it.ID] = searchBlob(it)
	ix.names[it.ID] = strings.ToLower(it.Name)
}

// remove drops an item from every index.
func (ix *index) remove(it *model.WishItem) {
	for _, cid := range it.CollectionIDs {
		ix.removeFromCollection(cid, it.ID)
	}
	for _, tag := range it.CategoryTags {
		ix.removeFromCategory(tag, it.ID)
	}
	for _, set := range ix.byStatus {
		set.remove(it.ID)
	}
	ix.bucket(it.DesireScore).remove(it.ID)
	ix.archived.remove(it.ID)
	delete(ix.blob, it.ID)
	delete(ix.names, it.ID)
	delete(ix.order, it.ID)
}

// replace moves an item from its old index entries to its new ones,
// touching only the axes that changed. Catalog order is kept.
func (ix *index) replace(old, cur *model.WishItem) {
	oldColl, curColl := toSet(old.CollectionIDs), toSet(cur.CollectionIDs)
	for cid := range oldColl {
		if !curColl.has(cid) {
			ix.removeFromCollection(cid, cur.ID)
		}
	}
	for _, cid := range cur.CollectionIDs {
		if !oldColl.has(cid) {
			ix.addToCollection(cid, cur.ID)
		}
	}

	oldTags, curTags := toSet(old.CategoryTags), toSet(cur.CategoryTags)
	for tag := range oldTags {
		if !curTags.has(tag) {
			ix.removeFromCategory(tag, cur.ID)
		}
	}
	for tag := range curTags {
		if !oldTags.has(tag) {
			ix.addToCategory(tag, cur.ID)
		}
	}

	if old.Claimed() != cur.Claimed() || old.IsPrivate != cur.IsPrivate {
		for _, set := range ix.byStatus {
			set.remove(cur.ID)
		}
		ix.indexStatus(cur)
	}

	if old.DesireScore != cur.DesireScore {
		ix.bucket(old.DesireScore).remove(cur.ID)
		ix.bucket(cur.DesireScore).add(cur.ID)
	}

	if cur.Archived() {
		ix.archived.add(cur.ID)
	} else {
		ix.archived.remove(cur.ID)
	}

	ix.blob[cur.ID] = searchBlob(cur)
	ix.names[cur.ID] = strings.ToLower(cur.Name)
}

func (ix *index) indexStatus(it *model.WishItem) {
	if it.Claimed() {
		ix.byStatus[StatusClaimed].add(it.ID)
	} else {
		ix.byStatus[StatusAvailable].add(it.ID)
	}
	if it.IsPrivate {
		ix.byStatus[StatusPrivate].add(it.ID)
	} else {
		ix.byStatus[StatusPublic].add(it.ID)
	}
}

func (ix *index) bucket(score int) idSet {
	set, ok := ix.byScore[score]
	if !ok {
		set = make(idSet)
		ix.byScore[score] = set
	}
	return set
}

func (ix *index) addToCollection(cid, id string) {
	set, ok := ix.byCollection[cid]
	if !ok {
		set = make(idSet)
		ix.byCollection[cid] = set
	}
	set.add(id)
}

func (ix *index) removeFromCollection(cid, id string) {
	if set, ok := ix.byCollection[cid]; ok {
		delete(set, id)
	}
}

func (ix *index) addToCategory(tag, id string) {
	set, ok := ix.byCategory[tag]
	if !ok {
		set = make(idSet)
		ix.byCategory[tag] = set
	}
	set.add(id)
}

func (ix *index) removeFromCategory(tag, id string) {
	if set, ok := ix.byCategory[tag]; ok {
		set.remove(id)
		if len(set) == 0 {
			delete(ix.byCategory, tag)
		}
	}
}

// all returns every item id in catalog insertion order.
func (ix *index) all() []string {
	ids := make([]string, 0, len(ix.order))
	for id := range ix.order {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ix.order[ids[i]] < ix.order[ids[j]] })
	return ids
}

// collection returns a collection's members in catalog insertion order,
// the same order every listing uses.
func (ix *index) collection(cid string) []string {
	set := ix.byCollection[cid]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ix.order[ids[i]] < ix.order[ids[j]] })
	return ids
}

// scoreAtLeast unions every score bucket at or above threshold.
func (ix *index) scoreAtLeast(threshold int) idSet {
	out := make(idSet)
	for score, set := range ix.byScore {
		if score < threshold {
			continue
		}
		for id := range set {
			out.add(id)
		}
	}
	return out
}

// collectionSize is the derived item count of a collection.
func (ix *index) collectionSize(cid string) int {
	return len(ix.byCollection[cid])
}

func (ix *index) size() int {
	return len(ix.order)
}

// searchBlob is the lowercase text searched for every item.
func searchBlob(it *model.WishItem) string {
	parts := make([]string, 0, 2+len(it.CategoryTags))
	parts = append(parts, it.Name, it.Description)
	parts = append(parts, it.CategoryTags...)
	return strings.ToLower(strings.Join(parts, " "))
}

func toSet(values []string) idSet {
	s := make(idSet, len(values))
	for _, v := range values {
		s.add(v)
	}
	return s
}
