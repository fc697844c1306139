package config

import "path/filepath"

// PostsPath returns the approved posts file: <home>/posts.json.
func PostsPath(home string) string {
	return filepath.Join(home, "posts.json")
}

// SchedulePath returns the publish queue file: <home>/schedule.json.
func SchedulePath(home string) string {
	return filepath.Join(home, "schedule.json")
}

// VectorsPath returns the similarity index file: <home>/vectors.json.
func VectorsPath(home string) string {
	return filepath.Join(home, "vectors.json")
}

// BrandPath returns the cached brand profile: <home>/brand.json.
func BrandPath(home string) string {
	return filepath.Join(home, "brand.json")
}

// KBDir returns the knowledge base directory: <home>/kb/.
func KBDir(home string) string {
	return filepath.Join(home, "kb")
}

// ImagesDir returns where downloaded images are stored: <home>/images/.
func ImagesDir(home string) string {
	return filepath.Join(home, "images")
}

// StateDir returns the directory for checkpoint databases and server pid files: <home>/state/.
func StateDir(home string) string {
	return filepath.Join(home, "state")
}

// SettingsPath returns the settings file: <home>/config.yaml.
func SettingsPath(home string) string {
	return filepath.Join(home, "config.yaml")
}
