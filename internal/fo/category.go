package fo

import "strings"

// Fallback bucket names, also used for auto-tagging after a rule-driven move.
const (
	CategoryDocuments = "Documents"
	CategoryImages    = "Images"
	CategoryVideos    = "Videos"
	CategoryMusic     = "Music"
	CategoryArchives  = "Archives"
	CategoryCode      = "Code"
	CategoryOther     = "Other"
)

var categoryByExtension = map[string]string{
	"pdf": CategoryDocuments, "doc": CategoryDocuments, "docx": CategoryDocuments,
	"txt": CategoryDocuments, "rtf": CategoryDocuments, "odt": CategoryDocuments,
	"xls": CategoryDocuments, "xlsx": CategoryDocuments, "ppt": CategoryDocuments,
	"pptx": CategoryDocuments,

	"jpg": CategoryImages, "jpeg": CategoryImages, "png": CategoryImages,
	"gif": CategoryImages, "bmp": CategoryImages, "webp": CategoryImages,
	"svg": CategoryImages,

	"mp4": CategoryVideos, "avi": CategoryVideos, "mov": CategoryVideos,
	"wmv": CategoryVideos, "mkv": CategoryVideos, "webm": CategoryVideos,

	"mp3": CategoryMusic, "wav": CategoryMusic, "flac": CategoryMusic,
	"ogg": CategoryMusic, "aac": CategoryMusic,

	"zip": CategoryArchives, "rar": CategoryArchives, "7z": CategoryArchives,
	"tar": CategoryArchives, "gz": CategoryArchives,

	"go": CategoryCode, "js": CategoryCode, "ts": CategoryCode,
	"html": CategoryCode, "css": CategoryCode, "rs": CategoryCode,
	"py": CategoryCode, "java": CategoryCode, "cpp": CategoryCode,
	"c": CategoryCode, "h": CategoryCode,
}

// CategoryForExtension maps a file extension (without the dot) to its default
// bucket name. Unknown or empty extensions map to Other.
func CategoryForExtension(ext string) string {
	if c, ok := categoryByExtension[strings.ToLower(ext)]; ok {
		return c
	}
	return CategoryOther
}
