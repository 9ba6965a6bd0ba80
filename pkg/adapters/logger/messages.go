package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Job level messages (info)
		"Starting %s job for %s":     "%s ジョブを開始します: %s",
		"Job completed successfully": "ジョブが正常に完了しました",
		"Output saved to %s":         "出力を %s に保存しました",
		"Summary saved to %s":        "サマリーを %s に保存しました",

		// Frame cache
		"Opened source %s (%s)":                                          "ソース %s を開きました (%s)",
		"Extracting run for %s at keyframe %s":                           "%s のキーフレーム %s からランをデコード中",
		"Extracted %d frames for %s at keyframe %s":                      "%d フレームをデコードしました (%s, キーフレーム %s)",
		"Run for %s at keyframe %s was trimmed past %s, extracting again": "%s のキーフレーム %s のランは %s より前が破棄済みのため再デコードします",
		"Flushed %d runs for %s":                                         "%d 個のランを破棄しました (%s)",
		"Cache stats: %d open frames":                                    "キャッシュ状況: 保持中のフレーム %d",
		"Metric %s%s = %d":                                               "メトリクス %s%s = %d",

		// Fetch stage
		"Fetching %d frames from %s with %d workers":               "%d フレームを %s から %d ワーカーで読み出し中",
		"Fetched %d frames (%d retries)":                           "%d フレームを読み出しました (再要求 %d 回)",
		"Frame at %s was trimmed from run at %s, requesting again": "%s のフレームが %s のランから破棄されたため再要求します",

		// Export stage
		"Saved %d frames": "%d フレームを保存しました",

		// Sheet stage
		"Sheet layout: %dx%d, %d rows of %d": "シートのレイアウト: %dx%d, %d 行 × %d",

		// Clip stage and juxtapose
		"Encoding %d frames at %.1f fps": "%d フレームを %.1f fps でエンコード中",
		"Video encoded: %d bytes":        "動画エンコード完了: %d バイト",
		"Comparing %s and %s":            "%s と %s を比較中",
		"Wrote %d frames to %s":          "%d フレームを %s に書き出しました",
		"Encoding with %s (%s)":          "%s (%s) でエンコードします",

		// Warnings
		"Failed to close cache: %s":                        "キャッシュのクローズに失敗しました: %s",
		"Failed to collect metrics: %s":                    "メトリクスの収集に失敗しました: %s",
		"H.264 encoder not available, falling back to AV1": "H.264 エンコーダーが利用できないため AV1 にフォールバックします",

		// Errors
		"Extraction failed for %s at keyframe %s: %v": "%s のキーフレーム %s のデコードに失敗しました: %v",
		"Failed to fetch frames: %s":                  "フレームの読み出しに失敗しました: %s",
		"Failed to export frames: %s":                 "フレームの保存に失敗しました: %s",
		"Failed to render sheet: %s":                  "シートの描画に失敗しました: %s",
		"Failed to encode clip: %s":                   "クリップのエンコードに失敗しました: %s",
		"Failed to write output: %s":                  "出力の書き込みに失敗しました: %s",
		"Failed to write summary: %s":                 "サマリーの書き込みに失敗しました: %s",
	})
}
