package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type directMessage struct {
	Seq          int64     `gorm:"primaryKey;autoIncrement"`
	ID           uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Conversation string    `gorm:"size:511;index;not null"`
	FromUserID   string    `gorm:"size:255;not null"`
	ToUserID     string    `gorm:"size:255;not null"`
	Body         string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (directMessage) TableName() string {
	return "direct_messages"
}

func (m directMessage) toMessage() Message {
	return Message{
		ID:         m.ID,
		FromUserID: m.FromUserID,
		ToUserID:   m.ToUserID,
		Message:    m.Body,
		Timestamp:  m.CreatedAt.UTC(),
	}
}

// Postgres 使用gorm把私信保存到PostgreSQL
type Postgres struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPostgres 连接数据库并自动迁移表结构
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return NewPostgresWithDB(db)
}

// NewPostgresWithDB 使用已有的连接
func NewPostgresWithDB(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&directMessage{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db, now: time.Now}, nil
}

// Append 实现Messages接口
func (p *Postgres) Append(ctx context.Context, from, to, text string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if err := validate(from, to, text); err != nil {
		return Message{}, err
	}

	row := directMessage{
		ID:           uuid.New(),
		Conversation: conversationKey(from, to),
		FromUserID:   from,
		ToUserID:     to,
		Body:         text,
		CreatedAt:    p.now().UTC(),
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last directMessage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation = ?", row.Conversation).
			Order("seq desc").
			First(&last).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			row.CreatedAt = monotonic(row.CreatedAt, last.CreatedAt)
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return row.toMessage(), nil
}

// Conversation 实现Messages接口
func (p *Postgres) Conversation(ctx context.Context, a, b string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := p.db.WithContext(ctx).Where("conversation = ?", conversationKey(a, b)).Order("seq desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []directMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	return oldestFirst(rows), nil
}

// oldestFirst 把按 seq 倒序查出的行转换为从旧到新的消息列表
func oldestFirst(rows []directMessage) []Message {
	result := make([]Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		result = append(result, rows[i].toMessage())
	}
	return result
}

// Close 关闭底层连接
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
