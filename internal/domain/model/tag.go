package model

// Tag — тег поста. Slug может быть Unicode (например, 온천).
// Хранится в таблице tags.
type Tag struct {
	ID   int64
	Name string
	Slug string
}

// TagCount — тег с количеством опубликованных постов.
type TagCount struct {
	Tag
	PublishedPosts int
}
