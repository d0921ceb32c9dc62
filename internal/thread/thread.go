// Package thread собирает плоский список комментариев поста в два уровня:
// комментарии верхнего уровня и прямые ответы на них.
package thread

import "github.com/ButyrinIA/socials/internal/models"

// Entry - комментарий с профилем автора (nil, если профиль не найден)
type Entry struct {
	Comment *models.Comment
	Author  *models.Profile
}

type Thread struct {
	Entry
	Replies []Entry
}

// Assemble сохраняет порядок входного списка и не сортирует заново.
// Ответ, родитель которого не найден среди комментариев верхнего уровня,
// отбрасывается. Вложенность глубже одного уровня не раскрывается.
func Assemble(entries []Entry) []*Thread {
	var threads []*Thread
	byID := make(map[string]*Thread)
	for _, e := range entries {
		if e.Comment == nil || e.Comment.ParentCommentID != nil {
			continue
		}
		t := &Thread{Entry: e, Replies: []Entry{}}
		threads = append(threads, t)
		byID[e.Comment.ID] = t
	}

	for _, e := range entries {
		if e.Comment == nil || e.Comment.ParentCommentID == nil {
			continue
		}
		if parent, ok := byID[*e.Comment.ParentCommentID]; ok {
			parent.Replies = append(parent.Replies, e)
		}
	}
	return threads
}
