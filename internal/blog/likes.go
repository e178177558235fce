package blog

import (
	"context"
	"errors"

	"essence/internal/optimistic"
	"essence/internal/session"
)

// likeState is the local view of one article's likes. Pending counts likes
// sent but not yet confirmed; once confirmed the backend count includes
// them and Pending drops back.
type likeState struct {
	Liked   bool
	Pending int
}

// likeKey scopes like state to the viewer who made the like
type likeKey struct {
	user    session.ID
	article session.ID
}

// Like adds the session user's like to an article. The like shows up in
// that user's page counts immediately and is withdrawn if the backend
// refuses it. The same user liking an article twice in one process is
// rejected.
func (s *Service) Like(ctx context.Context, articleID string) error {
	user, err := s.requireUser()
	if err != nil {
		return err
	}

	key := likeKey{user: user.ID, article: session.ID(articleID)}
	err = s.likeValue(key).Do(ctx, optimistic.Mutation[likeState]{
		Apply: func(st likeState) (likeState, error) {
			if st.Liked {
				return st, ErrAlreadyLiked
			}
			return likeState{Liked: true, Pending: st.Pending + 1}, nil
		},
		Commit: func(ctx context.Context) error {
			return s.backend.LikeArticle(ctx, articleID)
		},
		Revert: func(st likeState) likeState {
			return likeState{Liked: false, Pending: st.Pending - 1}
		},
		Settle: func(st likeState) likeState {
			st.Pending--
			return st
		},
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyLiked) {
			s.logger.Warn("Like rolled back", "article_id", articleID, "error", err)
		}
		return err
	}

	s.cache.invalidate(ctx, articlesCacheKey)
	return nil
}

func (s *Service) likeValue(key likeKey) *optimistic.Value[likeState] {
	s.likesMu.Lock()
	defer s.likesMu.Unlock()
	v, ok := s.likes[key]
	if !ok {
		v = optimistic.New(likeState{}, s.onRollback)
		s.likes[key] = v
	}
	return v
}

// likeStateOf is what viewer sees of their own like; anonymous viewers see
// none
func (s *Service) likeStateOf(viewer *session.UserProfile, article session.ID) likeState {
	if viewer == nil {
		return likeState{}
	}
	s.likesMu.Lock()
	v, ok := s.likes[likeKey{user: viewer.ID, article: article}]
	s.likesMu.Unlock()
	if !ok {
		return likeState{}
	}
	return v.Get()
}
