package domain

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

var mediaTypes = []MediaType{MediaAudio, MediaVideo, MediaImage}

// PostDraft - данные нового поста от автора.
type PostDraft struct {
	Title string
	Body  string
	Media []Media
	Tags  []string
}

// Normalize проверяет черновик и возвращает его с очищенными тегами:
// пустые теги отбрасываются, повторы схлопываются.
func (d PostDraft) Normalize() (PostDraft, error) {
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Body) == "" {
		return PostDraft{}, ErrEmptyPost
	}
	for _, m := range d.Media {
		if strings.TrimSpace(m.URL) == "" || !slices.Contains(mediaTypes, m.Type) {
			return PostDraft{}, ErrInvalidMedia
		}
	}

	tags := lo.Map(d.Tags, func(t string, _ int) string { return strings.TrimSpace(t) })
	d.Tags = lo.Uniq(lo.Filter(tags, func(t string, _ int) bool { return t != "" }))
	d.Media = append([]Media{}, d.Media...)
	return d, nil
}

// HasPendingTips сообщает, есть ли в посте чаевые, которые еще не выплачены.
func (p *Post) HasPendingTips() bool {
	return lo.ContainsBy(p.Targets(), func(t Target) bool {
		return !t.Escrow.IsPaidOut && len(t.Escrow.Tips) > 0
	})
}
