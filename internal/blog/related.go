package blog

import (
	"essence/internal/api"
	"essence/internal/session"
)

// Related picks up to limit articles to suggest next to currentID.
// Articles sharing categoryID come first; when there are fewer than limit
// of them the rest is filled with other articles in their original order.
// Without a category the first limit articles other than currentID are used.
func Related(articles []api.Article, currentID, categoryID session.ID, limit int) []api.Article {
	if limit <= 0 {
		return nil
	}

	others := make([]api.Article, 0, len(articles))
	for _, a := range articles {
		if a.ID != currentID {
			others = append(others, a)
		}
	}

	if categoryID == "" {
		return head(others, limit)
	}

	var same, rest []api.Article
	for _, a := range others {
		if a.CategoryID == categoryID {
			same = append(same, a)
		} else {
			rest = append(rest, a)
		}
	}
	if len(same) >= limit {
		return head(same, limit)
	}
	return head(append(same, rest...), limit)
}

func head(articles []api.Article, n int) []api.Article {
	if len(articles) > n {
		articles = articles[:n]
	}
	return articles
}
