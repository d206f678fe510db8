package dao

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"headless-pro/apps/content-api/model"
	"headless-pro/pkg/database"
)

// ContactCollection 联系表单集合名
const ContactCollection = "contact_submissions"

// contactDAO MongoDB联系表单归档
type contactDAO struct {
	collection *mongo.Collection
}

// NewContactDAO 创建联系表单归档DAO
func NewContactDAO(db *database.MongoDB) ContactArchive {
	return &contactDAO{collection: db.GetCollection(ContactCollection)}
}

// Save 保存提交记录
func (d *contactDAO) Save(ctx context.Context, submission *model.ContactSubmission) error {
	if _, err := d.collection.InsertOne(ctx, submission); err != nil {
		return fmt.Errorf("failed to archive contact submission: %w", err)
	}
	return nil
}

// MarkDelivered 标记邮件已投递
func (d *contactDAO) MarkDelivered(ctx context.Context, id int64) error {
	result, err := d.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"delivered": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to update contact submission: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("contact submission %d not found", id)
	}
	return nil
}
