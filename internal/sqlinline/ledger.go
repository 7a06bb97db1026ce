package sqlinline

const QLedgerEnsureAttempts = `--sql 044bb30e-dac0-4c5f-86a5-2076cfcc9fb0
alter table media_processing_pipeline
    add column if not exists attempts integer not null default 0;
`

const QLedgerEnsureUpdatedAt = `--sql 3fb234c7-19a7-43ef-802a-b9cc28a92935
alter table media_processing_pipeline
    add column if not exists updated_at timestamptz not null default now();
`

const QLedgerEnsureUniqueSource = `--sql 69c821c6-a58c-48ce-ac18-24e14c7ede88
create unique index if not exists media_processing_pipeline_source_type_key
    on media_processing_pipeline (source_media_id, process_type);
`

const QLedgerListEligible = `--sql 13409c9e-0f7d-4ba3-b7f7-77663d421564
select m.media_id::text, m.file_path, m.created_at
from media_files m
left join media_processing_pipeline p
    on p.source_media_id = m.media_id
   and p.process_type = $1
where m.approval_status = 'approved'
  and m.status = 'completed'
  and m.metadata ->> 'processed_from' is null
  and (
        p.pipeline_id is null
        or p.process_status = 'pending'
        or (p.process_status = 'failed' and ($2::int <= 0 or p.attempts < $2::int))
  )
order by m.created_at asc
limit $3;
`

const QLedgerClaim = `--sql a129a678-9f49-4a27-b53b-1d6a7fd21504
insert into media_processing_pipeline
    (source_media_id, process_type, process_status, process_config, attempts, created_at, updated_at)
values ($1, $2, 'processing', $3::jsonb, 1, now(), now())
on conflict (source_media_id, process_type) do update
set process_status = 'processing',
    process_config = excluded.process_config,
    attempts = media_processing_pipeline.attempts + 1,
    error_details = null,
    updated_at = now()
where media_processing_pipeline.process_status in ('pending', 'failed')
returning pipeline_id::text, source_media_id::text, output_media_id::text, process_status,
          process_results, error_details, attempts, created_at, updated_at;
`

const QLedgerComplete = `--sql cb569cc3-f38b-4795-b318-2b014dfb8219
with job as (
    select p.pipeline_id
    from media_processing_pipeline p
    where p.source_media_id = $1
      and p.process_type = $2
      and p.process_status = 'processing'
    for update
),
src as (
    select m.media_id, m.file_path, coalesce(m.metadata, '{}'::jsonb) as metadata
    from media_files m
    where m.media_id = $1
      and exists (select 1 from job)
),
output as (
    insert into media_files (upload_id, file_path, file_type, status, metadata)
    select coalesce(src.metadata ->> 'upload_id', 'processed-' || left(src.media_id::text, 8)),
           $3, 'image', 'completed',
           jsonb_strip_nulls(jsonb_build_object(
               'processed_from', src.media_id::text,
               'processing_metadata', $4::jsonb,
               'processor_version', $6::text,
               'original_filename', regexp_replace(src.file_path, '^.*/', ''),
               'original_file_path', src.file_path,
               'upload_id', src.metadata -> 'upload_id',
               'source_public_url', src.metadata -> 'public_url',
               'original_size', src.metadata -> 'size',
               'original_mime_type', src.metadata -> 'mime_type'
           ))
    from src
    returning media_id
)
update media_processing_pipeline p
set process_status = 'completed',
    output_media_id = (select media_id from output),
    process_results = $4::jsonb,
    processing_time_ms = $5,
    error_details = null,
    updated_at = now()
where p.pipeline_id in (select pipeline_id from job)
  and exists (select 1 from output)
returning p.pipeline_id::text, p.source_media_id::text, p.output_media_id::text, p.process_status,
          p.process_results, p.error_details, p.attempts, p.created_at, p.updated_at;
`

const QLedgerFail = `--sql 964da8ae-697f-4b08-a15a-57226570c600
update media_processing_pipeline
set process_status = 'failed',
    error_details = $3,
    process_results = $4::jsonb,
    output_media_id = null,
    updated_at = now()
where source_media_id = $1
  and process_type = $2
  and process_status = 'processing';
`

const QLedgerGetJob = `--sql 79fab21e-69c0-4a01-8ed8-a1d38487d551
select pipeline_id::text, source_media_id::text, output_media_id::text, process_status,
       process_results, error_details, attempts, created_at, updated_at
from media_processing_pipeline
where source_media_id = $1
  and process_type = $2;
`

const QLedgerGetSource = `--sql b210d37b-f07c-4231-8004-9e43224cef44
select media_id::text, file_path, approval_status = 'approved', status = 'completed', created_at
from media_files
where media_id = $1;
`

const QLedgerFailStale = `--sql e7e1c43c-f069-48fe-bace-524ff7c3f818
update media_processing_pipeline
set process_status = 'failed',
    error_details = $3,
    updated_at = now()
where process_type = $1
  and process_status = 'processing'
  and updated_at < now() - make_interval(secs => $2::float8)
returning source_media_id::text;
`

const QLedgerResetFailed = `--sql 58da48de-eb05-41b9-8ce7-633af683e96a
update media_processing_pipeline
set process_status = 'pending',
    attempts = 0,
    error_details = null,
    process_results = null,
    updated_at = now()
where source_media_id = $1
  and process_type = $2
  and process_status = 'failed';
`

const QLedgerCountByState = `--sql 2b35f874-7921-4ef5-a69f-c57e512412e4
select process_status, count(*)
from media_processing_pipeline
where process_type = $1
group by process_status;
`

const QLedgerPing = `--sql 11614cb4-e88c-4448-ad07-6e130b13247d
select 1;
`
