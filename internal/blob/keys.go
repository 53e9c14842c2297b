package blob

import (
	"fmt"
	"path"
	"strings"
	"time"

	"junks-backend/internal/utils"

	"github.com/google/uuid"
)

func HeroImageKey(now time.Time) string {
	return fmt.Sprintf("site-assets/hero-image-%d", now.UnixMilli())
}

func AvatarKey(filename string) string {
	return fmt.Sprintf("testimonials/avatars/%s-%s", uuid.NewString(), safeName(filename))
}

func UploadKey(now time.Time, filename string) string {
	return fmt.Sprintf("uploads/%d-%s", now.UnixMilli(), safeName(filename))
}

// safeName slugs the base name and keeps the extension.
func safeName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	name := utils.Slugify(strings.TrimSuffix(base, path.Ext(base)))
	if name == "" {
		name = "file"
	}
	return name + ext
}
