package database

// Metadata is a row of the metadata table
type Metadata struct {
	ID          int64    `gorm:"column:id;primaryKey;autoIncrement"`
	Title       string   `gorm:"column:title;not null"`
	Author      string   `gorm:"column:author;not null"`
	Language    string   `gorm:"column:language;not null"`
	PublishedAt string   `gorm:"column:created_at;not null"`
	Description string   `gorm:"column:description;not null;default:''"`
	Categories  []string `gorm:"column:categories;serializer:json"`
	PageCount   int      `gorm:"column:page_count;not null;default:0"`
	Rating      float64  `gorm:"column:rating;not null;default:0"`
}

// TableName keeps the table name of existing stores
func (Metadata) TableName() string { return "metadata" }

// Book is a row of the books (catalog) table
type Book struct {
	Path       string `gorm:"column:path;primaryKey"`
	IsUploaded bool   `gorm:"column:isUploaded;not null"`
	MetadataID int64  `gorm:"column:metadata"`
	IsRead     bool   `gorm:"column:isRead;not null;default:false"`
}

// TableName keeps the table name of existing stores
func (Book) TableName() string { return "books" }
