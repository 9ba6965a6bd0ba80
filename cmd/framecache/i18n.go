// Package main provides localization for the framecache CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration":     "設定",
		"Logging":           "ログ",
		"Cache":             "キャッシュ",
		"Output":            "出力先",
		"Sampling":          "サンプリング",
		"Layout and Style":  "レイアウトとスタイル",
		"Video and Quality": "動画と品質",

		// Root command
		"Read frames out of video files through a keyframe run cache": "キーフレーム単位のキャッシュを通して動画ファイルからフレームを読み出す",

		// Commands
		"Save frames as image files": "フレームを画像ファイルとして保存",
		"Decode frames at the sampled timestamps and save each as a PNG or JPEG file.": "サンプリングした時刻のフレームをデコードし、それぞれPNGまたはJPEGファイルとして保存します。",
		"Render a contact sheet": "コンタクトシートを描画",
		"Draw the sampled frames as a grid of labelled thumbnails in one image.": "サンプリングしたフレームをラベル付きサムネイルの格子として1枚の画像に描画します。",
		"Re-encode a range as an MP4 clip": "範囲をMP4クリップとして再エンコード",
		"Decode the sampled frames and encode them as an MP4 at the sampling rate.": "サンプリングしたフレームをデコードし、サンプリングレートでMP4にエンコードします。",
		"Output codec (av1, h264)": "出力コーデック (av1, h264)",
		"Create a side-by-side comparison video":                        "2つの動画を並べた比較動画を作成",
		"Create a side-by-side comparison video from two input videos.": "2つの入力動画から並列比較動画を作成します。",
		"List keyframes of a video":                                     "動画のキーフレームを一覧表示",
		"Print the codec, duration and keyframe timestamps of the video track.": "映像トラックのコーデック、長さ、キーフレーム時刻を表示します。",

		// Version command
		"Show version information": "バージョン情報を表示",
		"framecache version %s":    "framecache バージョン %s",

		// Global flags
		"YAML configuration file":                                 "YAML設定ファイル",
		"Log level (debug, info, warn, error)":                    "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                                 "全てのログ出力を抑制",
		"Print cache metrics when the job ends":                   "ジョブ終了時にキャッシュのメトリクスを表示",
		"Concurrent frame readers":                                "並行してフレームを読み出すワーカー数",
		"Safety window behind the newest request in milliseconds": "最新の要求より手前に保持する安全幅（ミリ秒）",
		"Trust container sync flags without checking keyframe payloads": "キーフレームの中身を検証せずコンテナの同期フラグを信頼",
		"Path to ffmpeg for H.264 decoding":                             "H.264デコードに使うffmpegのパス",
		"Output execution summary to file (Markdown format)":            "実行サマリーをファイルに出力（Markdown形式）",

		// Sampling flags
		"First timestamp in seconds":                                  "最初の時刻（秒）",
		"Last timestamp in seconds (default: end of video)":           "最後の時刻（秒、デフォルト: 動画の終わり）",
		"Last timestamp in seconds (default: until both videos end)":  "最後の時刻（秒、デフォルト: 両方の動画が終わるまで）",
		"Samples per second":                                          "1秒あたりのサンプル数",
		"Explicit timestamps in seconds, replacing start/end/fps":     "明示的な時刻（秒）。start/end/fpsの代わりに使用",

		// Output flags
		"Output directory (default: ./frames)":                   "出力ディレクトリ（デフォルト: ./frames）",
		"Output image path (required)":                           "出力画像のパス（必須）",
		"Output MP4 file path (required)":                        "出力MP4ファイルパス（必須）",
		"Image format (png, jpeg)":                               "画像形式（png, jpeg）",
		"Resize frames to this width, keeping the aspect ratio":  "縦横比を保ってこの幅にリサイズ",

		// Layout flags
		"Sheet title (default: video path)": "シートのタイトル（デフォルト: 動画のパス）",
		"Thumbnails per row":                "1行あたりのサムネイル数",
		"Thumbnail width in pixels":         "サムネイルの幅（ピクセル）",
		"Gap between videos in pixels":      "動画間の隙間（ピクセル）",

		// Video flags
		"Video CRF value (0-63, lower is better)": "動画のCRF値（0-63、低いほど高品質）",
		"Target bitrate in kbps":                  "目標ビットレート（kbps）",
		"Output frame rate":                       "出力フレームレート",

		// Runtime messages
		"Interrupted, shutting down...":    "中断されました。シャットダウン中...",
		"One video argument is required":   "動画引数が1つ必要です",
		"Two video arguments are required": "2つの動画引数が必要です",
		"Invalid timestamp %q":             "不正な時刻です: %q",

		// Keyframes command output
		"Codec: %s (%dx%d)": "コーデック: %s (%dx%d)",
		"Duration: %s":      "長さ: %s",
		"Samples: %d":       "サンプル数: %d",
		"Keyframes: %d":     "キーフレーム数: %d",

		// Summary content
		"Render Summary":     "レンダリングサマリー",
		"Job":                "ジョブ",
		"Item":               "項目",
		"Value":              "値",
		"Kind":               "種類",
		"Source":             "入力",
		"Codec":              "コーデック",
		"Elapsed":            "所要時間",
		"Frames":             "フレーム",
		"Requested":          "要求フレーム数",
		"Range":              "範囲",
		"Rate":               "レート",
		"Retries":            "再要求",
		"Hits":               "ヒット",
		"Misses":             "ミス",
		"Hit Rate":           "ヒット率",
		"Extractions":        "デコード回数",
		"Failed Extractions": "デコード失敗",
		"Runs Evicted":       "破棄したラン",
		"Frames Evicted":     "破棄したフレーム",
		"Path":               "パス",
		"Files":              "ファイル数",
		"Size":               "サイズ",
		"Dimensions":         "解像度",
		"Duration":           "再生時間",
		"Generated at":       "生成日時",
	})
}
