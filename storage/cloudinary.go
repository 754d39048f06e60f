// Package storage signs access to course media held in Cloudinary.
package storage

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const (
	DefaultVideoURLTTL = time.Hour
	DefaultVideoFolder = "skillcoin_course_videos"

	downloadBase = "https://api.cloudinary.com/v1_1"
)

var ErrNotConfigured = errors.New("storage: cloudinary is not configured")

// VideoSigner hands out time-limited links to course videos.
type VideoSigner interface {
	SignedVideoURL(path string, ttl time.Duration) (string, time.Time, error)
}

type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
	now    func() time.Time
}

func NewCloudinary(cloudinaryURL, folder string) (*Cloudinary, error) {
	if strings.TrimSpace(cloudinaryURL) == "" {
		return nil, ErrNotConfigured
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	if folder == "" {
		folder = DefaultVideoFolder
	}
	return &Cloudinary{cld: cld, folder: folder, now: time.Now}, nil
}

// SignedVideoURL returns a private download link for the video stored at
// path (its Cloudinary public id). Cloudinary refuses the link after the
// returned expiry.
func (c *Cloudinary) SignedVideoURL(path string, ttl time.Duration) (string, time.Time, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", time.Time{}, errors.New("storage: empty video path")
	}
	if ttl <= 0 {
		ttl = DefaultVideoURLTTL
	}
	now := c.now()
	expires := now.Add(ttl)

	params := url.Values{}
	params.Set("public_id", path)
	params.Set("type", "upload")
	params.Set("timestamp", strconv.FormatInt(now.Unix(), 10))
	params.Set("expires_at", strconv.FormatInt(expires.Unix(), 10))

	signature, err := api.SignParameters(params, c.cld.Config.Cloud.APISecret)
	if err != nil {
		return "", time.Time{}, err
	}
	params.Set("signature", signature)
	params.Set("api_key", c.cld.Config.Cloud.APIKey)

	u := downloadBase + "/" + url.PathEscape(c.cld.Config.Cloud.CloudName) + "/video/download?" + params.Encode()
	return u, expires, nil
}

type UploadSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
	Folder    string `json:"folder"`
}

// UploadSignature signs a direct browser upload into the video folder.
func (c *Cloudinary) UploadSignature() (*UploadSignature, error) {
	params, err := api.StructToParams(uploader.UploadParams{Folder: c.folder})
	if err != nil {
		return nil, err
	}
	ts := c.now().Unix()
	params.Set("timestamp", strconv.FormatInt(ts, 10))

	signature, err := api.SignParameters(params, c.cld.Config.Cloud.APISecret)
	if err != nil {
		return nil, err
	}
	return &UploadSignature{
		Signature: signature,
		Timestamp: ts,
		APIKey:    c.cld.Config.Cloud.APIKey,
		CloudName: c.cld.Config.Cloud.CloudName,
		Folder:    c.folder,
	}, nil
}
