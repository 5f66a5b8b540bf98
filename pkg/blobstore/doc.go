/*
Package blobstore manages media assets on the shared storage volume.

Layout computes the canonical addressing used across the cluster: local
paths under the mounted volume and glusterfs:// URIs advertised to workers.
Both implementations embed it, so mock mode produces the same addresses as
production.

Local is the production implementation. AddMedia moves an uploaded asset to
its canonical location, retrying briefly while the shared mount settles,
then probes the size (walking the directory, DASH assets are segment trees)
and the duration through ffprobe. A failed probe is not fatal; the media
just carries no duration. Mock records calls and fabricates probe results.
*/
package blobstore
