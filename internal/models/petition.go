package models

import (
	"time"
)

// MetricCategory names one per-petition fraud-signal counter. Categories are
// not mutually exclusive; a single email can increment several of them.
type MetricCategory string

const (
	MetricFreeEmail         MetricCategory = "free_email"
	MetricOpenEmail         MetricCategory = "open_email"
	MetricForwardingEmail   MetricCategory = "forwarding_email"
	MetricTimeBoundEmail    MetricCategory = "timebound_email"
	MetricShredderEmail     MetricCategory = "shredder_email"
	MetricSubaddressedEmail MetricCategory = "subaddressed_email"
	MetricUniqueIP          MetricCategory = "unique_ip"
)

// EmailMetricCategories are the categories driven by the disposability
// classifier, in evaluation order.
var EmailMetricCategories = []MetricCategory{
	MetricFreeEmail,
	MetricOpenEmail,
	MetricForwardingEmail,
	MetricTimeBoundEmail,
	MetricShredderEmail,
	MetricSubaddressedEmail,
}

// FraudMetrics holds the additive per-petition fraud counters. They are only
// ever incremented (with $inc at the store), never decremented.
type FraudMetrics struct {
	FreeEmailCount         int64 `bson:"free_email" json:"free_email"`
	OpenEmailCount         int64 `bson:"open_email" json:"open_email"`
	ForwardingEmailCount   int64 `bson:"forwarding_email" json:"forwarding_email"`
	TimeBoundEmailCount    int64 `bson:"timebound_email" json:"timebound_email"`
	ShredderEmailCount     int64 `bson:"shredder_email" json:"shredder_email"`
	SubaddressedEmailCount int64 `bson:"subaddressed_email" json:"subaddressed_email"`
	UniqueEmailCount       int64 `bson:"unique_email" json:"unique_email"`
	UniqueIPCount          int64 `bson:"unique_ip" json:"unique_ip"`
}

// Count returns the counter value for the given category.
func (f FraudMetrics) Count(cat MetricCategory) int64 {
	switch cat {
	case MetricFreeEmail:
		return f.FreeEmailCount
	case MetricOpenEmail:
		return f.OpenEmailCount
	case MetricForwardingEmail:
		return f.ForwardingEmailCount
	case MetricTimeBoundEmail:
		return f.TimeBoundEmailCount
	case MetricShredderEmail:
		return f.ShredderEmailCount
	case MetricSubaddressedEmail:
		return f.SubaddressedEmailCount
	case MetricUniqueIP:
		return f.UniqueIPCount
	default:
		return 0
	}
}

// Petition is the durable petition entity as seen by the pipeline. Content
// management lives elsewhere; this model only carries what signature
// processing reads and mutates.
type Petition struct {
	Base             `bson:",inline"`
	LegacyID         string       `bson:"legacy_id,omitempty" json:"legacy_id,omitempty"`
	Title            string       `bson:"title" json:"title"`
	Public           bool         `bson:"public" json:"public"`
	ClosedAt         *time.Time   `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
	SignatureCount   int64        `bson:"signature_count" json:"signature_count"`
	FraudMetrics     FraudMetrics `bson:"fraud_metrics" json:"fraud_metrics"`
	LastFraudAlertAt *time.Time   `bson:"last_fraud_alert_at,omitempty" json:"last_fraud_alert_at,omitempty"`
	CreatedAt        time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `bson:"updated_at" json:"updated_at"`
	Deleted          bool         `bson:"deleted" json:"-"`
}
