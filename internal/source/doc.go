// Package source resolves the local file for a catalog video, downloading it
// with the configured downloader (yt-dlp by default) when it is missing.
//
// Lookup order is <videos>/<id>, <videos>/<id>.mp4, then <videos>/<id>.mkv.
// Downloads use a fixed attempt budget with a fixed pause between attempts;
// after a successful download the file is located again with the same order.
package source
