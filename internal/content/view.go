package content

import (
	"github.com/ButyrinIA/socials/internal/access"
	"github.com/ButyrinIA/socials/internal/models"
	"github.com/ButyrinIA/socials/internal/thread"
)

// PostView: Content - исходный текст, ContentHTML - он же после очистки разметки
type PostView struct {
	*models.Post
	ContentHTML  string          `json:"contentHtml"`
	Author       *models.Profile `json:"author"`
	Owner        *models.Profile `json:"owner"`
	DisplayName  string          `json:"displayName"`
	PostedBy     string          `json:"postedBy,omitempty"`
	CommentCount int             `json:"commentCount"`
}

type CommentView struct {
	*models.Comment
	ContentHTML string          `json:"contentHtml"`
	Author      *models.Profile `json:"author"`
	DisplayName string          `json:"displayName"`
	PostedBy    string          `json:"postedBy,omitempty"`
	Replies     []CommentView   `json:"replies,omitempty"`
}

type PostDetail struct {
	Scope    *access.Scope `json:"scope"`
	Post     PostView      `json:"post"`
	Comments []CommentView `json:"comments"`
}

type FeedPage struct {
	Posts      []PostView `json:"posts"`
	TotalCount int        `json:"totalCount"`
	NextCursor *string    `json:"nextCursor"`
}

// newPostView подписывает пост именем владельца аккаунта; автор указывается
// отдельно, если пост написал менеджер.
func newPostView(p *models.Post, profiles map[string]*models.Profile, commentCount int, render func(string) string) PostView {
	v := PostView{
		Post:         p,
		ContentHTML:  render(p.Content),
		Author:       profiles[p.UserID],
		Owner:        profiles[p.OwnerID],
		DisplayName:  models.PlaceholderName(p.OwnerID),
		CommentCount: commentCount,
	}
	if v.Owner != nil && v.Owner.FullName != "" {
		v.DisplayName = v.Owner.FullName
	}
	if p.UserID != p.OwnerID {
		v.PostedBy = authorName(p.UserID, v.Author)
	}
	return v
}

func authorName(userID string, p *models.Profile) string {
	if p != nil && p.FullName != "" {
		return p.FullName
	}
	return "Anonymous (User ID: " + models.ShortID(userID) + "...)"
}

func newCommentView(e thread.Entry, render func(string) string) CommentView {
	return CommentView{
		Comment:     e.Comment,
		ContentHTML: render(e.Comment.Content),
		Author:      e.Author,
		DisplayName: authorName(e.Comment.UserID, e.Author),
	}
}

// newReplyView: в режиме менеджера ответ подписывается именем владельца,
// фактический автор выносится в PostedBy.
func newReplyView(e thread.Entry, scope *access.Scope, render func(string) string) CommentView {
	v := newCommentView(e, render)
	if scope != nil && scope.ManagerMode {
		if e.Comment.UserID != scope.AccountID {
			v.PostedBy = v.DisplayName
		}
		v.DisplayName = scope.Owner.FullName
	}
	return v
}

func threadViews(threads []*thread.Thread, scope *access.Scope, render func(string) string) []CommentView {
	views := make([]CommentView, 0, len(threads))
	for _, t := range threads {
		v := newCommentView(t.Entry, render)
		for _, r := range t.Replies {
			v.Replies = append(v.Replies, newReplyView(r, scope, render))
		}
		views = append(views, v)
	}
	return views
}
