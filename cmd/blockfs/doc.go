// Command blockfs formats, inspects and edits blockfs images.
//
//	blockfs --image disk.img mkfs --size 51200
//	echo hello | blockfs --image disk.img write greeting.txt
//	blockfs --image disk.img cat greeting.txt
//	blockfs --image disk.img fsck
//	blockfs --image disk.img export --compression lz4 disk.bfs
//
// Images may also live in a directory, S3 or MinIO (--backend
// dir|s3|minio), one object per block. Settings are read from a YAML file (--config or
// BLOCKFS_CONFIG_FILE) and BLOCKFS_* environment variables; flags win.
package main
