package helpers

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/repository"
	"github.com/dealerdesk/lead-engine/pkg/pg"
	"github.com/dealerdesk/lead-engine/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.CustomerEntity{},
		&repository.EngagementEventEntity{},
		&repository.PurchaseEntity{},
		&repository.SegmentEntity{},
		&repository.SegmentMemberEntity{},
		&repository.InquiryEntity{},
		&repository.VehicleEntity{},
		&repository.LeadScoreEntity{},
		&repository.LeadAssignmentEntity{},
		&repository.WaitQueueEntity{},
		&repository.FollowUpTaskEntity{},
		&repository.RepresentativeEntity{},
		&repository.CampaignEntity{},
		&repository.DeliveryLogEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per test to avoid global adapter caching issues
	connName := fmt.Sprintf("%s-%s", t.Name(), mr.Addr())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestCustomer(t *testing.T, db *pg.DB, email, phone string) *model.Customer {
	repo := repository.NewCustomerRepository(db)
	customer, err := repo.Create(context.Background(), &model.Customer{
		FirstName:      "Test",
		LastName:       "Customer",
		Email:          email,
		Phone:          phone,
		EmailOptIn:     true,
		SMSOptIn:       true,
		MarketingOptIn: true,
		Active:         true,
	})
	require.NoError(t, err)
	return customer
}

func CreateTestRepresentative(t *testing.T, db *pg.DB, name string, maxLoad int) *model.Representative {
	repo := repository.NewRepresentativeRepository(db)
	rep, err := repo.Create(context.Background(), &model.Representative{
		Name:      name,
		Email:     name + "@dealer.test",
		Active:    true,
		Available: true,
		MaxLoad:   maxLoad,
	})
	require.NoError(t, err)
	return rep
}

func CreateTestInquiry(t *testing.T, db *pg.DB, customerID *int64, email string, kind model.InquiryType) *model.Inquiry {
	repo := repository.NewInquiryRepository(db)
	inquiry, err := repo.Create(context.Background(), &model.Inquiry{
		CustomerID: customerID,
		FirstName:  "Test",
		LastName:   "Lead",
		Email:      email,
		Type:       kind,
		Status:     model.InquiryStatusNew,
	})
	require.NoError(t, err)
	return inquiry
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
