package handlers

import (
	"time"

	"github.com/anjiri1684/skillcoin/ledger"
	"github.com/anjiri1684/skillcoin/logger"
	"github.com/anjiri1684/skillcoin/notifications"
	"github.com/anjiri1684/skillcoin/storage"
	"github.com/anjiri1684/skillcoin/websocket"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New()

const (
	defaultStartingCoins = 1000
	defaultTeacherPrice  = 50
	tokenTTL             = 72 * time.Hour
)

// MediaStore signs course video access and direct uploads.
type MediaStore interface {
	storage.VideoSigner
	UploadSignature() (*storage.UploadSignature, error)
}

type Deps struct {
	DB     *gorm.DB
	Ledger *ledger.Core
	Log    *logger.Logger
	// Media, Mailer and Hub are optional.
	Media  MediaStore
	Mailer notifications.Mailer
	Hub    *websocket.Hub

	JWTSecret     string
	StartingCoins int64
	Now           func() time.Time
}

type Handler struct {
	db     *gorm.DB
	ledger *ledger.Core
	log    *logger.Logger
	media  MediaStore
	mailer notifications.Mailer
	hub    *websocket.Hub

	jwtSecret     []byte
	startingCoins int64
	now           func() time.Time
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Mailer == nil {
		d.Mailer = (*notifications.BrevoService)(nil)
	}
	if d.StartingCoins <= 0 {
		d.StartingCoins = defaultStartingCoins
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{
		db:            d.DB,
		ledger:        d.Ledger,
		log:           d.Log,
		media:         d.Media,
		mailer:        d.Mailer,
		hub:           d.Hub,
		jwtSecret:     []byte(d.JWTSecret),
		startingCoins: d.StartingCoins,
		now:           d.Now,
	}
}
