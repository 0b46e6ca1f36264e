/*
Package source provides the typed façades over content source packages.

Source is a closed interface: the only implementations are the text,
image and video façades returned by New. Callers switch on the concrete
interface:

	switch s := src.(type) {
	case source.TextSource:
		content, ok := s.GetChapterDetails(ctx, chapterID, entryID)
	case source.ImageSource:
		pages, ok := s.GetChapterDetails(ctx, chapterID, entryID)
	case source.VideoSource:
		details, ok := s.GetEpisodeDetails(ctx, episodeID, entryID)
	}

Every method suspends at the bridge and reports absence with ok == false.
Failures are logged by the bridge, never returned.
*/
package source
