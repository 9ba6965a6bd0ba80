package mp4source

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/framecache/pkg/adapters/codecdetect"
	"github.com/user/framecache/pkg/mediatime"
)

// ErrNoSamples is returned when the video track holds no samples.
var ErrNoSamples = errors.New("mp4source: no samples in video track")

// Sample locates one coded sample of the video track.
type Sample struct {
	// Timestamp is the presentation time.
	Timestamp mediatime.Time
	Duration  mediatime.Time
	Sync      bool

	Offset int64
	Size   uint32

	// data is set when the sample was loaded with its fragment.
	data []byte
}

// Index is the sample table of a video track in decode order.
type Index struct {
	Track      codecdetect.Track
	Fragmented bool
	Samples    []Sample

	// syncs lists indexes of sync samples ordered by presentation time.
	syncs []int
}

// Duration returns the presentation end of the last sample.
func (x *Index) Duration() mediatime.Time {
	var end mediatime.Time
	for _, s := range x.Samples {
		if e := s.Timestamp + s.Duration; e > end {
			end = e
		}
	}
	return end
}

// Keyframes returns the presentation timestamps of all sync samples.
func (x *Index) Keyframes() []mediatime.Time {
	out := make([]mediatime.Time, len(x.syncs))
	for i, n := range x.syncs {
		out[i] = x.Samples[n].Timestamp
	}
	return out
}

// ReadIndex parses the moov and fragment headers of r and indexes the first
// video track. Progressive files are read with lazy mdat decoding so only
// sample offsets are kept; fragmented files keep sample data in memory.
func ReadIndex(r io.ReadSeeker) (*Index, error) {
	mp4File, err := mp4.DecodeFile(r, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	if mp4File.IsFragmented() {
		// Fragment samples are resolved from their mdat, so decode it fully.
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}
		mp4File, err = mp4.DecodeFile(r)
		if err != nil {
			return nil, fmt.Errorf("decode fragmented mp4: %w", err)
		}
	}

	trak, err := codecdetect.VideoTrak(mp4File)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Track:      codecdetect.Describe(trak),
		Fragmented: mp4File.IsFragmented(),
	}

	if idx.Fragmented {
		err = idx.addFragments(mp4File)
	} else {
		err = idx.addSampleTable(trak)
	}
	if err != nil {
		return nil, err
	}
	if len(idx.Samples) == 0 {
		return nil, ErrNoSamples
	}

	idx.buildSyncs()
	return idx, nil
}

func (x *Index) addFragments(mp4File *mp4.File) error {
	var trex *mp4.TrexBox
	if mp4File.Init != nil && mp4File.Init.Moov != nil && mp4File.Init.Moov.Mvex != nil {
		for _, t := range mp4File.Init.Moov.Mvex.Trexs {
			if t.TrackID == x.Track.ID {
				trex = t
				break
			}
		}
	}

	timescale := x.Track.Timescale
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}

			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != x.Track.ID {
					continue
				}

				var baseDecodeTime uint64
				if traf.Tfdt != nil {
					baseDecodeTime = traf.Tfdt.BaseMediaDecodeTime()
				}

				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return fmt.Errorf("get samples: %w", err)
				}

				currentTime := baseDecodeTime
				for _, s := range samples {
					pts := int64(currentTime) + int64(s.CompositionTimeOffset)
					x.Samples = append(x.Samples, Sample{
						Timestamp: fromTicks(pts, timescale),
						Duration:  mediatime.FromTimescale(uint64(s.Dur), timescale),
						Sync:      s.IsSync(),
						Size:      s.Size,
						data:      s.Data,
					})
					currentTime += uint64(s.Dur)
				}
			}
		}
	}
	return nil
}

func (x *Index) addSampleTable(trak *mp4.TrakBox) error {
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return fmt.Errorf("no sample table found")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil || stbl.Stsc == nil {
		return fmt.Errorf("missing stsz or stsc box")
	}

	// Without stss every sample is a sync sample.
	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	timescale := x.Track.Timescale
	for nr := uint32(1); nr <= stbl.Stsz.SampleNumber; nr++ {
		offset, err := sampleOffset(stbl, nr)
		if err != nil {
			return fmt.Errorf("locate sample %d: %w", nr, err)
		}

		var decodeTime uint64
		var dur uint32
		if stbl.Stts != nil {
			decodeTime, dur = stbl.Stts.GetDecodeTime(nr)
		}
		pts := int64(decodeTime)
		if stbl.Ctts != nil {
			pts += int64(stbl.Ctts.GetCompositionTimeOffset(nr))
		}

		x.Samples = append(x.Samples, Sample{
			Timestamp: fromTicks(pts, timescale),
			Duration:  mediatime.FromTimescale(uint64(dur), timescale),
			Sync:      stbl.Stss == nil || syncSamples[nr],
			Offset:    offset,
			Size:      stbl.Stsz.GetSampleSize(int(nr)),
		})
	}
	return nil
}

// sampleOffset returns the file offset of a 1-based sample number.
func sampleOffset(stbl *mp4.StblBox, sampleNr uint32) (int64, error) {
	chunkNr, firstSampleInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(sampleNr))
	if err != nil {
		return 0, fmt.Errorf("get chunk nr: %w", err)
	}

	var chunkOffset uint64
	switch {
	case stbl.Stco != nil:
		chunkOffset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return 0, fmt.Errorf("get chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return 0, fmt.Errorf("chunk nr %d out of range", chunkNr)
		}
		chunkOffset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return 0, fmt.Errorf("no stco or co64 box")
	}

	offset := chunkOffset
	for s := uint32(firstSampleInChunk); s < sampleNr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}
	return int64(offset), nil
}

func (x *Index) buildSyncs() {
	x.syncs = x.syncs[:0]
	for i, s := range x.Samples {
		if s.Sync {
			x.syncs = append(x.syncs, i)
		}
	}
	sort.SliceStable(x.syncs, func(i, j int) bool {
		return x.Samples[x.syncs[i]].Timestamp < x.Samples[x.syncs[j]].Timestamp
	})
}

// syncAtOrBefore returns the position in syncs of the last sync sample whose
// presentation time is not after ts, or -1.
func (x *Index) syncAtOrBefore(ts mediatime.Time) int {
	i := sort.Search(len(x.syncs), func(i int) bool {
		return x.Samples[x.syncs[i]].Timestamp > ts
	})
	return i - 1
}

// fromTicks converts a possibly negative presentation time. Negative
// composition offsets before the first sample clamp to zero.
func fromTicks(ticks int64, timescale uint32) mediatime.Time {
	if ticks < 0 {
		return 0
	}
	return mediatime.FromTimescale(uint64(ticks), timescale)
}
