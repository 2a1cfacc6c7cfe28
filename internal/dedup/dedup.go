package dedup

import "github.com/spigell/jobmatch/internal/posting"

// Deduplicate returns postings not present in seen, in input order, and the
// seen set extended with the ids of the returned postings.
//
// Postings with an empty id are always returned and never recorded. A repeated
// id within one batch is returned only for its first occurrence. The input set
// is not modified.
func Deduplicate(postings []posting.Posting, seen posting.SeenSet) ([]posting.Posting, posting.SeenSet) {
	updated := seen.Clone()
	unseen := make([]posting.Posting, 0, len(postings))

	for _, p := range postings {
		if p.ID == "" {
			unseen = append(unseen, p)
			continue
		}
		if updated.Has(p.ID) {
			continue
		}
		updated.Add(p.ID)
		unseen = append(unseen, p)
	}

	return unseen, updated
}
